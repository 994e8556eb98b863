// Package merge implements the git merge driver for dcat JSONL files.
//
// Git hands the driver three versions of the file: the common ancestor
// (%O), ours (%A, which is also the output), and theirs (%B). The driver
// merges record-by-record on semantic identity instead of line position,
// so two branches touching different issues never conflict, and branches
// touching the same issue resolve by freshest update rather than by
// textual markers.
//
// The driver is deliberately forgiving: malformed lines and leftover
// textual conflict markers are logged and skipped, never fatal. A merge
// that loses a bad line is recoverable; a merge that fails blocks the
// whole rebase.
package merge

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dogcat-dev/dogcat/internal/debug"
	"github.com/dogcat-dev/dogcat/internal/types"
)

// lwwRecord is a raw issue or proposal line with the timestamp used for
// last-write-wins resolution. Timestamps compare lexicographically,
// which is correct for ISO-8601 strings in the same offset.
type lwwRecord struct {
	raw       []byte
	updatedAt string
}

// eventRecord is a raw event line with its dedup identity.
type eventRecord struct {
	raw       []byte
	key       string
	timestamp string
}

// fileState is one side of the merge after op replay: the effective
// record sets, with original line bytes preserved.
type fileState struct {
	issues    map[string]lwwRecord // by full id
	proposals map[string]lwwRecord // by full id
	deps      map[string][]byte    // effective edge set, key → assert line
	links     map[string][]byte
	events    []eventRecord
	eventKeys map[string]bool
}

func newFileState() *fileState {
	return &fileState{
		issues:    make(map[string]lwwRecord),
		proposals: make(map[string]lwwRecord),
		deps:      make(map[string][]byte),
		links:     make(map[string][]byte),
		eventKeys: make(map[string]bool),
	}
}

// Files three-way merges ancestorPath, oursPath, and theirsPath into
// outPath. When invoked as a git merge driver, outPath equals oursPath.
func Files(ancestorPath, oursPath, theirsPath, outPath string) error {
	var ancestor, ours, theirs *fileState

	var g errgroup.Group
	g.Go(func() (err error) { ancestor, err = parseFile(ancestorPath); return })
	g.Go(func() (err error) { ours, err = parseFile(oursPath); return })
	g.Go(func() (err error) { theirs, err = parseFile(theirsPath); return })
	if err := g.Wait(); err != nil {
		return err
	}

	var out [][]byte
	out = append(out, mergeLWW(ours.issues, theirs.issues)...)
	out = append(out, mergeLWW(ours.proposals, theirs.proposals)...)
	out = append(out, mergeSets(ancestor.deps, ours.deps, theirs.deps)...)
	out = append(out, mergeSets(ancestor.links, ours.links, theirs.links)...)
	out = append(out, mergeEvents(ours.events, theirs.events)...)

	return writeLines(outPath, out)
}

// mergeLWW unions two last-write-wins maps. Theirs wins exact timestamp
// ties, matching a convergent preference for the incoming branch.
func mergeLWW(ours, theirs map[string]lwwRecord) [][]byte {
	merged := make(map[string]lwwRecord, len(ours)+len(theirs))
	for id, rec := range ours {
		merged[id] = rec
	}
	for id, rec := range theirs {
		if existing, ok := merged[id]; !ok || rec.updatedAt >= existing.updatedAt {
			merged[id] = rec
		}
	}

	ids := make([]string, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([][]byte, 0, len(ids))
	for _, id := range ids {
		out = append(out, merged[id].raw)
	}
	return out
}

// mergeSets three-way merges edge sets already reduced by op replay.
// An edge present on both sides survives (theirs' bytes win). An edge
// present on one side survives only if the ancestor lacked it: if the
// ancestor had it, the other side removed it, and removals win.
func mergeSets(ancestor, ours, theirs map[string][]byte) [][]byte {
	keys := make(map[string]bool, len(ours)+len(theirs))
	for key := range ours {
		keys[key] = true
	}
	for key := range theirs {
		keys[key] = true
	}

	sorted := make([]string, 0, len(keys))
	for key := range keys {
		sorted = append(sorted, key)
	}
	sort.Strings(sorted)

	var out [][]byte
	for _, key := range sorted {
		theirLine, inTheirs := theirs[key]
		ourLine, inOurs := ours[key]
		_, inAncestor := ancestor[key]
		switch {
		case inOurs && inTheirs:
			out = append(out, theirLine)
		case inTheirs && !inAncestor:
			out = append(out, theirLine)
		case inOurs && !inAncestor:
			out = append(out, ourLine)
		}
	}
	return out
}

// mergeEvents unions both sides' events, deduplicated on identity, in
// chronological order.
func mergeEvents(ours, theirs []eventRecord) [][]byte {
	seen := make(map[string]bool, len(ours)+len(theirs))
	var merged []eventRecord
	for _, ev := range ours {
		if !seen[ev.key] {
			seen[ev.key] = true
			merged = append(merged, ev)
		}
	}
	for _, ev := range theirs {
		if !seen[ev.key] {
			seen[ev.key] = true
			merged = append(merged, ev)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].timestamp != merged[j].timestamp {
			return merged[i].timestamp < merged[j].timestamp
		}
		return merged[i].key < merged[j].key
	})

	out := make([][]byte, 0, len(merged))
	for _, ev := range merged {
		out = append(out, ev.raw)
	}
	return out
}

// parseFile reads one side of the merge into its effective record sets.
// A missing file is an empty side (a file added on both branches has no
// ancestor version).
func parseFile(path string) (*fileState, error) {
	state := newFileState()

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if isConflictMarker(line) {
			debug.Warnf("%s:%d: skipping leftover conflict marker", path, lineNo)
			continue
		}
		raw := append([]byte(nil), line...)
		if err := state.addLine(raw); err != nil {
			debug.Warnf("%s:%d: skipping malformed record: %v", path, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return state, nil
}

func (st *fileState) addLine(raw []byte) error {
	kind, err := types.ClassifyRecord(raw)
	if err != nil {
		return err
	}
	switch kind {
	case types.KindDependency:
		return st.addEdge(raw, st.deps, depIdentity)
	case types.KindLink:
		return st.addEdge(raw, st.links, linkIdentity)
	case types.KindEvent:
		return st.addEvent(raw)
	case types.KindProposal:
		return st.addLWW(raw, st.proposals)
	default:
		return st.addLWW(raw, st.issues)
	}
}

// addLWW records an issue or proposal line. Within one file, a later
// line is a later state, so it replaces unconditionally.
func (st *fileState) addLWW(raw []byte, into map[string]lwwRecord) error {
	var probe struct {
		Namespace string `json:"namespace"`
		ID        string `json:"id"`
		UpdatedAt string `json:"updated_at"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return err
	}
	if probe.ID == "" {
		return fmt.Errorf("record has no id")
	}
	fid := probe.ID
	if probe.Namespace != "" {
		fid = probe.Namespace + "-" + probe.ID
	}
	into[fid] = lwwRecord{raw: raw, updatedAt: probe.UpdatedAt}
	return nil
}

// addEdge replays one dependency or link op against the effective set.
func (st *fileState) addEdge(raw []byte, into map[string][]byte, identity func([]byte) (string, error)) error {
	var probe struct {
		Op string `json:"op"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return err
	}
	key, err := identity(raw)
	if err != nil {
		return err
	}
	if probe.Op == "remove" {
		delete(into, key)
		return nil
	}
	into[key] = raw
	return nil
}

func depIdentity(raw []byte) (string, error) {
	var probe struct {
		IssueID     string `json:"issue_id"`
		DependsOnID string `json:"depends_on_id"`
		Type        string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", err
	}
	if probe.IssueID == "" || probe.DependsOnID == "" {
		return "", fmt.Errorf("dependency record missing endpoints")
	}
	if probe.Type == "" {
		probe.Type = string(types.DepBlocks)
	}
	return probe.IssueID + ":" + probe.DependsOnID + ":" + probe.Type, nil
}

func linkIdentity(raw []byte) (string, error) {
	var probe struct {
		FromID   string `json:"from_id"`
		ToID     string `json:"to_id"`
		LinkType string `json:"link_type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", err
	}
	if probe.FromID == "" || probe.ToID == "" {
		return "", fmt.Errorf("link record missing endpoints")
	}
	if probe.LinkType == "" {
		probe.LinkType = types.DefaultLinkType
	}
	return probe.FromID + ":" + probe.ToID + ":" + probe.LinkType, nil
}

// addEvent records an event line keyed by its identity tuple: issue id,
// timestamp, event type, actor, and the sorted changed-field names. Two
// branches replaying the same mutation produce identical tuples and
// collapse to one line.
func (st *fileState) addEvent(raw []byte) error {
	var probe struct {
		IssueID   string                     `json:"issue_id"`
		Timestamp string                     `json:"timestamp"`
		EventType string                     `json:"event_type"`
		By        string                     `json:"by"`
		Changes   map[string]json.RawMessage `json:"changes"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return err
	}
	fields := make([]string, 0, len(probe.Changes))
	for name := range probe.Changes {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	key := strings.Join([]string{
		probe.IssueID, probe.Timestamp, probe.EventType, probe.By, strings.Join(fields, ","),
	}, "\x00")
	if st.eventKeys[key] {
		return nil
	}
	st.eventKeys[key] = true
	st.events = append(st.events, eventRecord{raw: raw, key: key, timestamp: probe.Timestamp})
	return nil
}

// isConflictMarker matches the textual markers git leaves behind when a
// previous merge went unresolved.
func isConflictMarker(line []byte) bool {
	for _, marker := range []string{"<<<<<<<", "=======", ">>>>>>>", "|||||||"} {
		if bytes.HasPrefix(line, []byte(marker)) {
			return true
		}
	}
	return false
}

// writeLines replaces outPath atomically via a temp file in the same
// directory.
func writeLines(outPath string, lines [][]byte) error {
	dir := filepath.Dir(outPath)
	tmp, err := os.CreateTemp(dir, ".merge-*.jsonl.tmp")
	if err != nil {
		return fmt.Errorf("creating merge output: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		if _, err := w.Write(line); err != nil {
			tmp.Close()
			return fmt.Errorf("writing merge output: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			tmp.Close()
			return fmt.Errorf("writing merge output: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing merge output: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing merge output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing merge output: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replacing %s: %w", outPath, err)
	}
	return nil
}
