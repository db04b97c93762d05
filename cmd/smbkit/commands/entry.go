package commands

import (
	"strconv"
	"time"

	"github.com/marmos91/smbkit/internal/cli/output"
	"github.com/marmos91/smbkit/internal/cli/timeutil"
	"github.com/marmos91/smbkit/pkg/transport"
)

// fileEntry is the printed form of transport.FileInfo.
type fileEntry struct {
	Name       string    `json:"name" yaml:"name"`
	Path       string    `json:"path,omitempty" yaml:"path,omitempty"`
	Type       string    `json:"type" yaml:"type"`
	Size       int64     `json:"size" yaml:"size"`
	Attributes uint32    `json:"attributes" yaml:"attributes"`
	Created    time.Time `json:"created" yaml:"created"`
	Modified   time.Time `json:"modified" yaml:"modified"`
	Accessed   time.Time `json:"accessed" yaml:"accessed"`
}

func newFileEntry(path string, fi transport.FileInfo) fileEntry {
	kind := "file"
	if fi.IsDir {
		kind = "dir"
	}
	return fileEntry{
		Name:       fi.Name,
		Path:       path,
		Type:       kind,
		Size:       fi.Size,
		Attributes: fi.Attributes,
		Created:    fi.CreationTime,
		Modified:   fi.ModTime,
		Accessed:   fi.AccessTime,
	}
}

// Headers and Rows render a single entry as a key/value table.
func (e fileEntry) Headers() []string { return nil }

func (e fileEntry) Rows() [][]string {
	var kv output.KeyValues
	if e.Path != "" {
		kv.Add("Path", e.Path)
	}
	kv.Add("Name", e.Name)
	kv.Add("Type", e.Type)
	kv.Add("Size", strconv.FormatInt(e.Size, 10))
	kv.Add("Attributes", "0x"+strconv.FormatUint(uint64(e.Attributes), 16))
	kv.Add("Created", timeutil.FormatModTime(e.Created))
	kv.Add("Modified", timeutil.FormatModTime(e.Modified))
	kv.Add("Accessed", timeutil.FormatModTime(e.Accessed))
	return kv.Rows()
}

// entryList renders directory listings.
type entryList []fileEntry

func (l entryList) Headers() []string { return []string{"Type", "Size", "Modified", "Name"} }

func (l entryList) Rows() [][]string {
	rows := make([][]string, len(l))
	for i, e := range l {
		name := e.Name
		if e.Type == "dir" {
			name += `\`
		}
		rows[i] = []string{e.Type, strconv.FormatInt(e.Size, 10), timeutil.FormatModTime(e.Modified), name}
	}
	return rows
}
