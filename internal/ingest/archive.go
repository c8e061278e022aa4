package ingest

import (
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/mhaseeb/pindiaqi/internal/aqi"
)

const archiveDialTimeout = 15 * time.Second

// ArchiveClient pulls the newest backup CSV from the data team's FTP drop.
// The inference pipeline writes a dated CSV there after every run, so the
// archive serves as the fallback when the feature store is unreachable.
type ArchiveClient struct {
	host string
	user string
	pass string
	dir  string
}

func NewArchiveClient(host, user, pass, dir string) *ArchiveClient {
	if user == "" {
		user = "anonymous"
		pass = "anonymous"
	}
	return &ArchiveClient{host: host, user: user, pass: pass, dir: dir}
}

// FetchLatest downloads and parses the most recently modified .csv file in
// the archive directory.
func (a *ArchiveClient) FetchLatest() (aqi.RawTable, []byte, error) {
	conn, err := ftp.Dial(a.host, ftp.DialWithTimeout(archiveDialTimeout))
	if err != nil {
		return aqi.RawTable{}, nil, fmt.Errorf("dial %s: %w", a.host, err)
	}
	defer conn.Quit()

	if err := conn.Login(a.user, a.pass); err != nil {
		return aqi.RawTable{}, nil, fmt.Errorf("login: %w", err)
	}

	entries, err := conn.List(a.dir)
	if err != nil {
		return aqi.RawTable{}, nil, fmt.Errorf("list %s: %w", a.dir, err)
	}

	var files []*ftp.Entry
	for _, e := range entries {
		if e.Type == ftp.EntryTypeFile && strings.HasSuffix(e.Name, ".csv") {
			files = append(files, e)
		}
	}
	if len(files) == 0 {
		return aqi.RawTable{}, nil, fmt.Errorf("no csv backups in %s", a.dir)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Time.After(files[j].Time)
	})
	newest := files[0]

	resp, err := conn.Retr(path.Join(a.dir, newest.Name))
	if err != nil {
		return aqi.RawTable{}, nil, fmt.Errorf("retrieve %s: %w", newest.Name, err)
	}
	defer resp.Close()

	body, err := io.ReadAll(resp)
	if err != nil {
		return aqi.RawTable{}, nil, fmt.Errorf("read %s: %w", newest.Name, err)
	}

	table, err := ReadCSV(strings.NewReader(string(body)))
	if err != nil {
		return aqi.RawTable{}, nil, fmt.Errorf("parse %s: %w", newest.Name, err)
	}
	return table, body, nil
}
