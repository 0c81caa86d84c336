package transfer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"github.com/stlalpha/impulse-bbs/internal/file"
)

// fakeAreaManager is an in-memory AreaManager for pipeline tests, built
// directly against the capability set transfer needs rather than against
// file.FileManager, so these tests exercise the interface boundary.
type fakeAreaManager struct {
	areas   map[int]*file.FileArea
	records map[int][]file.FileRecord
}

func newFakeAreaManager(areas ...*file.FileArea) *fakeAreaManager {
	m := &fakeAreaManager{
		areas:   make(map[int]*file.FileArea),
		records: make(map[int][]file.FileRecord),
	}
	for _, a := range areas {
		m.areas[a.ID] = a
	}
	return m
}

func (m *fakeAreaManager) GetAreaByID(id int) (*file.FileArea, bool) {
	a, ok := m.areas[id]
	return a, ok
}

func (m *fakeAreaManager) GetFilesForArea(areaID int) []file.FileRecord {
	return m.records[areaID]
}

func (m *fakeAreaManager) GetFileRecord(fileID uuid.UUID) (*file.FileRecord, bool) {
	for _, recs := range m.records {
		for i := range recs {
			if recs[i].ID == fileID {
				rec := recs[i]
				return &rec, true
			}
		}
	}
	return nil, false
}

func (m *fakeAreaManager) AddFileRecord(record file.FileRecord) error {
	if _, ok := m.areas[record.AreaID]; !ok {
		return fmt.Errorf("no such area %d", record.AreaID)
	}
	m.records[record.AreaID] = append(m.records[record.AreaID], record)
	return nil
}

func (m *fakeAreaManager) IncrementDownloadCount(fileID uuid.UUID) error {
	for areaID, recs := range m.records {
		for i := range recs {
			if recs[i].ID == fileID {
				m.records[areaID][i].DownloadCount++
				return nil
			}
		}
	}
	return fmt.Errorf("file %s not found", fileID)
}

func (m *fakeAreaManager) GetFilePath(fileID uuid.UUID) (string, error) {
	for _, recs := range m.records {
		for i := range recs {
			if recs[i].ID == fileID {
				return recs[i].Filename, nil
			}
		}
	}
	return "", fmt.Errorf("file %s not found", fileID)
}

type alwaysCleanScanner struct{}

func (alwaysCleanScanner) Scan(path string) (ScanResult, error) {
	return ScanResult{Clean: true}, nil
}

type alwaysInfectedScanner struct{ name string }

func (s alwaysInfectedScanner) Scan(path string) (ScanResult, error) {
	return ScanResult{Clean: false, Name: s.name}, nil
}

var testUUIDCounter int

// newTestUUID returns a deterministic, distinct UUID per call so seed
// records in a test don't collide without depending on a random source.
func newTestUUID() uuid.UUID {
	testUUIDCounter++
	return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012d", testUUIDCounter))
}

// hashBytes mirrors hashFile's digest for callers that already have the
// content in memory (seeding an existing record's SHA256 in a test).
func hashBytes(data []byte) (string, error) {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:]), nil
}
