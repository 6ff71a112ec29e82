package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/annotatron-api/internal/models"
	"github.com/noah-isme/annotatron-api/internal/repository"
)

type mockCorpusRepo struct {
	mu      sync.Mutex
	corpora map[string]*models.Corpus
	nextID  uint64
	err     error
}

func newMockCorpusRepo() *mockCorpusRepo {
	return &mockCorpusRepo{corpora: map[string]*models.Corpus{}}
}

func (m *mockCorpusRepo) Create(ctx context.Context, corpus *models.Corpus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.corpora[corpus.Name]; ok {
		return repository.ErrDuplicate
	}
	m.nextID++
	corpus.ID = m.nextID
	corpus.CreatedAt = time.Now().UTC()
	clone := *corpus
	m.corpora[corpus.Name] = &clone
	return nil
}

func (m *mockCorpusRepo) ListNames(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var names []string
	for name := range m.corpora {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *mockCorpusRepo) FindByName(ctx context.Context, name string) (*models.Corpus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	corpus, ok := m.corpora[name]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *corpus
	return &clone, nil
}

type mockAssetRepo struct {
	mu     sync.Mutex
	assets map[uint64]*models.Asset
	nextID uint64
	err    error
}

func newMockAssetRepo() *mockAssetRepo {
	return &mockAssetRepo{assets: map[uint64]*models.Asset{}}
}

func (m *mockAssetRepo) Create(ctx context.Context, asset *models.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, a := range m.assets {
		if a.CorpusID == asset.CorpusID && a.Name == asset.Name {
			return repository.ErrDuplicate
		}
	}
	m.nextID++
	asset.ID = m.nextID
	asset.DateUploaded = time.Now().UTC()
	asset.Size = int64(len(asset.Content))
	clone := *asset
	m.assets[asset.ID] = &clone
	return nil
}

func (m *mockAssetRepo) ListNames(ctx context.Context, corpusID uint64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for _, a := range m.assets {
		if a.CorpusID == corpusID {
			names = append(names, a.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *mockAssetRepo) FindByName(ctx context.Context, corpusID uint64, name string) (*models.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.assets {
		if a.CorpusID == corpusID && a.Name == name {
			return metadataOnly(a), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAssetRepo) FindByID(ctx context.Context, id uint64) (*models.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	a, ok := m.assets[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return metadataOnly(a), nil
}

func (m *mockAssetRepo) FindContent(ctx context.Context, id uint64) (*models.AssetContent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.AssetContent{Name: a.Name, MimeType: a.MimeType, Content: append([]byte(nil), a.Content...), Checksum: a.Checksum}, nil
}

func (m *mockAssetRepo) Delete(ctx context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assets[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.assets, id)
	return nil
}

func (m *mockAssetRepo) CheckDuplicate(ctx context.Context, corpusID uint64, name, checksum string) (*models.DuplicateReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	report := &models.DuplicateReport{MatchingAssets: []string{}}
	for _, a := range m.assets {
		if a.CorpusID != corpusID {
			continue
		}
		if a.Name == name {
			report.NameCollision = true
		}
		if a.Checksum == checksum {
			report.MatchingAssets = append(report.MatchingAssets, a.Name)
		}
	}
	sort.Strings(report.MatchingAssets)
	report.ChecksumMatches = len(report.MatchingAssets)
	return report, nil
}

func metadataOnly(a *models.Asset) *models.Asset {
	clone := *a
	clone.Content = nil
	return &clone
}

type mockQuestionRepo struct {
	mu      sync.Mutex
	records map[uint64]*models.QuestionRecord
	nextID  uint64
}

func newMockQuestionRepo() *mockQuestionRepo {
	return &mockQuestionRepo{records: map[uint64]*models.QuestionRecord{}}
}

func (m *mockQuestionRepo) Create(ctx context.Context, record *models.QuestionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.CorpusID == record.CorpusID && r.SummaryCode == record.SummaryCode {
			return repository.ErrDuplicate
		}
	}
	m.nextID++
	record.ID = m.nextID
	record.CreatedAt = time.Now().UTC()
	clone := *record
	m.records[record.ID] = &clone
	return nil
}

func (m *mockQuestionRepo) ListByCorpus(ctx context.Context, corpusID uint64) ([]models.QuestionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.QuestionRecord
	for _, r := range m.records {
		if r.CorpusID == corpusID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockQuestionRepo) FindByID(ctx context.Context, corpusID, id uint64) (*models.QuestionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok || r.CorpusID != corpusID {
		return nil, sql.ErrNoRows
	}
	clone := *r
	return &clone, nil
}

func (m *mockQuestionRepo) Delete(ctx context.Context, corpusID, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok || r.CorpusID != corpusID {
		return sql.ErrNoRows
	}
	delete(m.records, id)
	return nil
}
