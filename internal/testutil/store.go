package testutil

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/AI-Template-SDK/senso-insights/internal/models"
	"github.com/AI-Template-SDK/senso-insights/internal/repositories/interfaces"
	"github.com/google/uuid"
)

// MemoryStore is an in-memory stand-in for the postgres repositories.
// It mirrors their transactional behavior: a failing call leaves no partial writes.
type MemoryStore struct {
	mu        sync.Mutex
	responses map[int64]*models.ResponseContext
	analyses  map[uuid.UUID]*models.ResponseAnalysis
	citations map[uuid.UUID]*models.Citation
	seq       map[uuid.UUID]int
	next      int
	batches   map[uuid.UUID]*models.Batch

	// Error hooks let tests inject datastore failures
	ReplaceErr         func(responseIDs []int64) error
	InsertCitationsErr func(analysisID uuid.UUID) error
	BatchUpdateErr     func(b *models.Batch) error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		responses: make(map[int64]*models.ResponseContext),
		analyses:  make(map[uuid.UUID]*models.ResponseAnalysis),
		citations: make(map[uuid.UUID]*models.Citation),
		seq:       make(map[uuid.UUID]int),
		batches:   make(map[uuid.UUID]*models.Batch),
	}
}

// AddResponse seeds a response context
func (s *MemoryStore) AddResponse(rc *models.ResponseContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rc
	s.responses[rc.ID] = &cp
}

// AddCitation seeds a citation row directly
func (s *MemoryStore) AddCitation(c *models.Citation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putCitation(c)
}

func (s *MemoryStore) putCitation(c *models.Citation) {
	cp := *c
	s.citations[c.ID] = &cp
	s.next++
	s.seq[c.ID] = s.next
}

// Analyses returns a snapshot of every analysis row
func (s *MemoryStore) Analyses() []*models.ResponseAnalysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.ResponseAnalysis, 0, len(s.analyses))
	for _, a := range s.analyses {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResponseID < out[j].ResponseID })
	return out
}

// Citations returns a snapshot of every citation row in insertion order
func (s *MemoryStore) Citations() []*models.Citation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Citation, 0, len(s.citations))
	for _, c := range s.citations {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return s.seq[out[i].ID] < s.seq[out[j].ID] })
	return out
}

// Citation returns a copy of one citation row
func (s *MemoryStore) Citation(id uuid.UUID) (*models.Citation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.citations[id]
	if !ok {
		return nil, false
	}
	cp := *c
	return &cp, true
}

func (s *MemoryStore) Responses() interfaces.ResponseRepository { return &memResponseRepo{s} }
func (s *MemoryStore) AnalysisRepo() interfaces.AnalysisRepository { return &memAnalysisRepo{s} }
func (s *MemoryStore) CitationRepo() interfaces.CitationRepository { return &memCitationRepo{s} }
func (s *MemoryStore) BatchRepo() interfaces.BatchRepository       { return &memBatchRepo{s} }

type memResponseRepo struct{ s *MemoryStore }

func (r *memResponseRepo) ListContexts(ctx context.Context, afterID, endID int64, limit int) ([]*models.ResponseContext, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []int64
	for id := range r.s.responses {
		if id > afterID && id <= endID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]*models.ResponseContext, 0, len(ids))
	for _, id := range ids {
		cp := *r.s.responses[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memResponseRepo) GetContext(ctx context.Context, responseID int64) (*models.ResponseContext, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rc, ok := r.s.responses[responseID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	cp := *rc
	return &cp, nil
}

type memAnalysisRepo struct{ s *MemoryStore }

func (r *memAnalysisRepo) ReplaceForResponses(ctx context.Context, responseIDs []int64, analyses []*models.ResponseAnalysis) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.ReplaceErr != nil {
		if err := r.s.ReplaceErr(responseIDs); err != nil {
			return err
		}
	}

	deleted := make(map[int64]bool, len(responseIDs))
	for _, id := range responseIDs {
		deleted[id] = true
	}
	doomed := make(map[uuid.UUID]bool)
	for id, a := range r.s.analyses {
		if deleted[a.ResponseID] {
			doomed[id] = true
		}
	}

	// Promote the oldest surviving reuse of every original about to disappear
	for _, c := range r.s.citations {
		if !c.IsOriginal || !doomed[c.ResponseAnalysisID] {
			continue
		}
		var successor *models.Citation
		for _, reuse := range r.s.citations {
			if reuse.OriginCitationID == nil || *reuse.OriginCitationID != c.ID || doomed[reuse.ResponseAnalysisID] {
				continue
			}
			if successor == nil || r.s.seq[reuse.ID] < r.s.seq[successor.ID] {
				successor = reuse
			}
		}
		if successor == nil {
			continue
		}
		successor.IsOriginal = true
		successor.OriginCitationID = nil
		newID := successor.ID
		for _, reuse := range r.s.citations {
			if reuse.OriginCitationID != nil && *reuse.OriginCitationID == c.ID && reuse.ID != newID {
				reuse.OriginCitationID = &newID
			}
		}
	}

	for id, c := range r.s.citations {
		if doomed[c.ResponseAnalysisID] {
			delete(r.s.citations, id)
			delete(r.s.seq, id)
		}
	}
	for id := range doomed {
		delete(r.s.analyses, id)
	}
	for _, a := range analyses {
		cp := *a
		r.s.analyses[a.ID] = &cp
	}
	return nil
}

func (r *memAnalysisRepo) GetByResponseID(ctx context.Context, responseID int64) (*models.ResponseAnalysis, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.analyses {
		if a.ResponseID == responseID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, interfaces.ErrNotFound
}

func (r *memAnalysisRepo) ListPendingCitations(ctx context.Context, filter interfaces.PendingCitationFilter) ([]*models.ResponseAnalysis, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.ResponseAnalysis
	for _, a := range r.s.analyses {
		if a.CitationsProcessedAt != nil || a.ResponseID <= filter.AfterResponseID {
			continue
		}
		if filter.BatchID != nil && (a.BatchID == nil || *a.BatchID != *filter.BatchID) {
			continue
		}
		if filter.CompanyID != nil && (a.CompanyID == nil || *a.CompanyID != *filter.CompanyID) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResponseID < out[j].ResponseID })
	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memCitationRepo struct{ s *MemoryStore }

func (r *memCitationRepo) FindReusableOriginal(ctx context.Context, url string, since time.Time) (*models.Citation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var best *models.Citation
	for _, c := range r.s.citations {
		if c.URL != url || !c.IsOriginal || c.CreatedAt.Before(since) {
			continue
		}
		if best == nil || c.CreatedAt.After(best.CreatedAt) {
			best = c
		}
	}
	if best == nil {
		return nil, interfaces.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *memCitationRepo) InsertForAnalysis(ctx context.Context, analysisID uuid.UUID, citations []*models.Citation, processedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.InsertCitationsErr != nil {
		if err := r.s.InsertCitationsErr(analysisID); err != nil {
			return err
		}
	}
	a, ok := r.s.analyses[analysisID]
	if !ok {
		return interfaces.ErrNotFound
	}
	for _, c := range citations {
		dup := false
		for _, existing := range r.s.citations {
			if existing.ResponseAnalysisID == analysisID && existing.URL == c.URL {
				dup = true
				break
			}
		}
		if !dup {
			r.s.putCitation(c)
		}
	}
	at := processedAt
	a.CitationsProcessedAt = &at
	return nil
}

func (r *memCitationRepo) ListByAnalysis(ctx context.Context, analysisID uuid.UUID) ([]*models.Citation, error) {
	var out []*models.Citation
	for _, c := range r.s.Citations() {
		if c.ResponseAnalysisID == analysisID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CitationOrder < out[j].CitationOrder })
	return out, nil
}

func (r *memCitationRepo) filter(limit int, keep func(c *models.Citation) bool) []*models.Citation {
	var out []*models.Citation
	for _, c := range r.s.Citations() {
		if keep(c) {
			out = append(out, c)
		}
		if len(out) == limit {
			break
		}
	}
	return out
}

func (r *memCitationRepo) ListNeedingAuthority(ctx context.Context, limit, maxAttempts int) ([]*models.Citation, error) {
	return r.filter(limit, func(c *models.Citation) bool {
		return c.IsOriginal && c.AuthorityEnrichedAt == nil && c.AuthorityAttempts < maxAttempts
	}), nil
}

func (r *memCitationRepo) fanOut(id uuid.UUID, unset func(c *models.Citation) bool, apply func(c *models.Citation)) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.citations {
		if c.ID == id || (c.OriginCitationID != nil && *c.OriginCitationID == id && unset(c)) {
			apply(c)
			c.UpdatedAt = time.Now()
		}
	}
}

func (r *memCitationRepo) UpdateAuthority(ctx context.Context, id uuid.UUID, m models.AuthorityMetrics, at time.Time) error {
	r.fanOut(id, func(c *models.Citation) bool { return c.AuthorityEnrichedAt == nil }, func(c *models.Citation) {
		da, pa, ss, el, eld := m.DomainAuthority, m.PageAuthority, m.SpamScore, m.ExternalLinks, m.ExternalLinkingDomains
		enrichedAt := at
		c.DomainAuthority, c.PageAuthority, c.SpamScore = &da, &pa, &ss
		c.ExternalLinks, c.ExternalLinkingDomains = &el, &eld
		c.AuthorityEnrichedAt = &enrichedAt
		c.AuthorityError = nil
	})
	return nil
}

func (r *memCitationRepo) RecordAuthorityFailure(ctx context.Context, id uuid.UUID, reason string, permanent bool, maxAttempts int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.citations[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	c.AuthorityAttempts++
	if permanent && c.AuthorityAttempts < maxAttempts {
		c.AuthorityAttempts = maxAttempts
	}
	msg := reason
	c.AuthorityError = &msg
	return nil
}

func (r *memCitationRepo) ListNeedingContent(ctx context.Context, limit, maxAttempts int) ([]*models.Citation, error) {
	return r.filter(limit, func(c *models.Citation) bool {
		return c.IsOriginal && c.MarkdownContent == nil && c.ScrapeAttempts < maxAttempts
	}), nil
}

func (r *memCitationRepo) UpdateContent(ctx context.Context, id uuid.UUID, markdown string, at time.Time) error {
	r.fanOut(id, func(c *models.Citation) bool { return c.MarkdownContent == nil }, func(c *models.Citation) {
		md, scrapedAt := markdown, at
		c.MarkdownContent = &md
		c.ScrapedAt = &scrapedAt
		c.ScrapeError = nil
	})
	return nil
}

func (r *memCitationRepo) RecordScrapeFailure(ctx context.Context, id uuid.UUID, reason string, at time.Time, permanent bool, maxAttempts int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.citations[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	c.ScrapeAttempts++
	if permanent && c.ScrapeAttempts < maxAttempts {
		c.ScrapeAttempts = maxAttempts
	}
	msg, scrapedAt := reason, at
	c.ScrapeError = &msg
	c.ScrapedAt = &scrapedAt
	return nil
}

func (r *memCitationRepo) ListNeedingContentAnalysis(ctx context.Context, limit int) ([]*interfaces.ContentAnalysisCandidate, error) {
	var out []*interfaces.ContentAnalysisCandidate
	for _, c := range r.s.Citations() {
		if !c.IsOriginal || c.MarkdownContent == nil || c.ScrapedAt == nil {
			continue
		}
		if c.ContentAnalyzedAt != nil && !c.ContentAnalyzedAt.Before(*c.ScrapedAt) {
			continue
		}
		cand := &interfaces.ContentAnalysisCandidate{
			CitationID: c.ID,
			URL:        c.URL,
			Markdown:   *c.MarkdownContent,
			ScrapedAt:  *c.ScrapedAt,
		}
		r.s.mu.Lock()
		if a, ok := r.s.analyses[c.ResponseAnalysisID]; ok {
			if rc, ok := r.s.responses[a.ResponseID]; ok {
				cand.QueryText = rc.QueryText
				cand.CompanyName = rc.CompanyName
			}
		}
		r.s.mu.Unlock()
		out = append(out, cand)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memCitationRepo) UpdateContentAnalysis(ctx context.Context, id uuid.UUID, analysis models.ContentAnalysis, at time.Time) error {
	r.fanOut(id, func(c *models.Citation) bool { return c.ContentAnalysis == nil }, func(c *models.Citation) {
		ca, analyzedAt := analysis, at
		c.ContentAnalysis = &ca
		c.ContentAnalyzedAt = &analyzedAt
	})
	return nil
}

func (r *memCitationRepo) Backlog(ctx context.Context, maxAttempts int) (*interfaces.EnrichmentBacklog, error) {
	var b interfaces.EnrichmentBacklog
	for _, c := range r.s.Citations() {
		if !c.IsOriginal {
			continue
		}
		if c.AuthorityEnrichedAt == nil && c.AuthorityAttempts < maxAttempts {
			b.AuthorityPending++
		}
		if c.MarkdownContent == nil && c.ScrapeAttempts < maxAttempts {
			b.ContentPending++
		}
		if c.MarkdownContent != nil && c.ScrapedAt != nil && (c.ContentAnalyzedAt == nil || c.ContentAnalyzedAt.Before(*c.ScrapedAt)) {
			b.AnalysisPending++
		}
	}
	return &b, nil
}

type memBatchRepo struct{ s *MemoryStore }

func (r *memBatchRepo) Create(ctx context.Context, b *models.Batch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *b
	r.s.batches[b.ID] = &cp
	return nil
}

func (r *memBatchRepo) Get(ctx context.Context, id uuid.UUID) (*models.Batch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.batches[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *memBatchRepo) UpdateStatus(ctx context.Context, b *models.Batch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.BatchUpdateErr != nil {
		if err := r.s.BatchUpdateErr(b); err != nil {
			return err
		}
	}
	existing, ok := r.s.batches[b.ID]
	if !ok {
		return interfaces.ErrNotFound
	}
	existing.Status = b.Status
	existing.ErrorMessage = b.ErrorMessage
	existing.UpdatedAt = b.UpdatedAt
	existing.StartedAt = b.StartedAt
	existing.CompletedAt = b.CompletedAt
	return nil
}

func (r *memBatchRepo) UpdateMetadata(ctx context.Context, id uuid.UUID, metadata []byte) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.batches[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	merged := map[string]interface{}{}
	if len(b.Metadata) > 0 {
		_ = json.Unmarshal(b.Metadata, &merged)
	}
	patch := map[string]interface{}{}
	if err := json.Unmarshal(metadata, &patch); err != nil {
		return err
	}
	for k, v := range patch {
		merged[k] = v
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	b.Metadata = out
	return nil
}

func (r *memBatchRepo) ListByCompany(ctx context.Context, companyID uuid.UUID, limit int) ([]*models.Batch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Batch
	for _, b := range r.s.batches {
		if b.CompanyID != nil && *b.CompanyID == companyID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
