package world

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/yysun/agent-world-sub006/core"
)

// archiveHeader is the first line of a memory archive, describing what
// follows without requiring a full decode.
type archiveHeader struct {
	WorldID    string    `json:"worldId"`
	AgentID    string    `json:"agentId"`
	Entries    int       `json:"entries"`
	ArchivedAt time.Time `json:"archivedAt"`
}

// archiveMemory writes the entries as zstd-compressed JSONL under
// dir/<worldID>/: one header line, then one line per entry, in append
// order. The file is written via temp+rename so a crash never leaves a
// truncated archive in place.
func archiveMemory(dir, worldID, agentID string, entries []core.MemoryEntry) (string, error) {
	outDir := filepath.Join(dir, worldID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	stamp := time.Now().UTC().Format("20060102T150405")
	path := filepath.Join(outDir, fmt.Sprintf("%s-%s.jsonl.zst", agentID, stamp))
	tmp := path + ".tmp"

	if err := writeArchive(tmp, worldID, agentID, entries); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return path, nil
}

func writeArchive(path, worldID, agentID string, entries []core.MemoryEntry) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(enc)
	header := archiveHeader{
		WorldID:    worldID,
		AgentID:    agentID,
		Entries:    len(entries),
		ArchivedAt: time.Now().UTC(),
	}
	if err := writeLine(bw, header); err != nil {
		return err
	}
	for i := range entries {
		if err := writeLine(bw, entries[i]); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

func writeLine(bw *bufio.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := bw.Write(b); err != nil {
		return err
	}
	return bw.WriteByte('\n')
}

// ReadArchive loads an archive written by ClearAgentMemory, returning
// the archived entries in their original append order.
func ReadArchive(path string) ([]core.MemoryEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("archive %s: missing header", path)
	}
	var header archiveHeader
	if err := json.Unmarshal(sc.Bytes(), &header); err != nil {
		return nil, fmt.Errorf("archive %s: bad header: %w", path, err)
	}

	entries := make([]core.MemoryEntry, 0, header.Entries)
	for sc.Scan() {
		var e core.MemoryEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("archive %s: bad entry %d: %w", path, len(entries), err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
