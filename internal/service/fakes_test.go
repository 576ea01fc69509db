package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/studygroups/internal/model"
	"go.uber.org/zap"
)

type poolKey struct{ student, course string }

type memPool struct {
	mu      sync.Mutex
	seq     int
	entries map[poolKey]*model.PoolEntry
	order   map[poolKey]int
	// stolen имитирует записи, которые забрал другой процесс между сканом и фиксацией
	stolen map[string]bool
}

func newMemPool() *memPool {
	return &memPool{
		entries: make(map[poolKey]*model.PoolEntry),
		order:   make(map[poolKey]int),
		stolen:  make(map[string]bool),
	}
}

func (p *memPool) Replace(_ context.Context, entry *model.PoolEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := poolKey{entry.StudentID, entry.CourseID}
	cp := *entry
	cp.ConceptIDs = append([]string(nil), entry.ConceptIDs...)
	p.seq++
	p.entries[k] = &cp
	p.order[k] = p.seq
	return nil
}

func (p *memPool) ListWaiting(_ context.Context, courseID, exclude string, now time.Time) ([]*model.PoolEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var keys []poolKey
	for k, e := range p.entries {
		if k.course == courseID && k.student != exclude && e.Status == model.PoolStatusWaiting && !e.IsExpired(now) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return p.order[keys[i]] < p.order[keys[j]] })

	out := make([]*model.PoolEntry, 0, len(keys))
	for _, k := range keys {
		cp := *p.entries[k]
		out = append(out, &cp)
	}
	return out, nil
}

func (p *memPool) GetWaiting(_ context.Context, studentID, courseID string) (*model.PoolEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[poolKey{studentID, courseID}]
	if !ok || e.Status != model.PoolStatusWaiting {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (p *memPool) transition(studentID, courseID string, to model.PoolStatus) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[poolKey{studentID, courseID}]
	if !ok || e.Status != model.PoolStatusWaiting {
		return false
	}
	e.Status = to
	return true
}

func (p *memPool) Expire(_ context.Context, studentID, courseID string) (bool, error) {
	return p.transition(studentID, courseID, model.PoolStatusExpired), nil
}

func (p *memPool) Delete(_ context.Context, studentID, courseID string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := poolKey{studentID, courseID}
	if _, ok := p.entries[k]; !ok {
		return 0, nil
	}
	delete(p.entries, k)
	delete(p.order, k)
	return 1, nil
}

func (p *memPool) status(studentID, courseID string) model.PoolStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[poolKey{studentID, courseID}]; ok {
		return e.Status
	}
	return ""
}

func (p *memPool) count(courseID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for k := range p.entries {
		if k.course == courseID {
			n++
		}
	}
	return n
}

// memMatches делит состояние с memPool, чтобы Commit был атомарным, как транзакция в Postgres
type memMatches struct {
	mu   sync.Mutex
	pool *memPool
	rows []*model.Match
	// err возвращается вставкой пары; изменения пула при этом не применяются
	err error
}

func (m *memMatches) Commit(_ context.Context, match *model.Match, initiatorID string, claimPartner bool) (model.CommitOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pool.mu.Lock()
	defer m.pool.mu.Unlock()

	partner := poolKey{match.PartnerOf(initiatorID), match.CourseID}
	if claimPartner {
		e, ok := m.pool.entries[partner]
		if !ok || e.Status != model.PoolStatusWaiting {
			return model.CommitClaimLost, nil
		}
		if m.pool.stolen[partner.student] {
			e.Status = model.PoolStatusMatched
			return model.CommitClaimLost, nil
		}
	}

	if m.err != nil {
		return "", m.err
	}

	outcome := model.CommitCreated
	if existing := m.activePair(match); existing != nil {
		*match = *existing
		outcome = model.CommitReused
	} else {
		cp := *match
		m.rows = append(m.rows, &cp)
	}

	if claimPartner {
		m.pool.entries[partner].Status = model.PoolStatusMatched
	}
	if e, ok := m.pool.entries[poolKey{initiatorID, match.CourseID}]; ok && e.Status == model.PoolStatusWaiting {
		e.Status = model.PoolStatusMatched
	}

	return outcome, nil
}

func (m *memMatches) activePair(match *model.Match) *model.Match {
	for _, row := range m.rows {
		if row.Status == model.MatchStatusActive && row.CourseID == match.CourseID &&
			row.Student1ID == match.Student1ID && row.Student2ID == match.Student2ID {
			return row
		}
	}
	return nil
}

// insert кладёт пару напрямую, минуя пул
func (m *memMatches) insert(match *model.Match) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *match
	m.rows = append(m.rows, &cp)
}

func (m *memMatches) GetActiveForStudent(_ context.Context, courseID, studentID string) (*model.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.rows) - 1; i >= 0; i-- {
		row := m.rows[i]
		if row.CourseID == courseID && row.Status == model.MatchStatusActive && row.Involves(studentID) {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memMatches) DeactivateForStudent(_ context.Context, courseID, studentID string) ([]*model.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Match
	for _, row := range m.rows {
		if row.CourseID == courseID && row.Status == model.MatchStatusActive && row.Involves(studentID) {
			row.Status = model.MatchStatusInactive
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memMatches) all() []*model.Match {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.Match(nil), m.rows...)
}

// memMastery только читается во время работы движка
type memMastery struct {
	values map[string]map[string]float64
	err    error
}

func (m *memMastery) Confidences(_ context.Context, studentID string, conceptIDs []string) (map[string]float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]float64)
	for _, id := range conceptIDs {
		if v, ok := m.values[studentID][id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

type memStudents struct {
	rows []*model.Student
}

func (s *memStudents) GetByID(_ context.Context, id string) (*model.Student, error) {
	for _, st := range s.rows {
		if st.ID == id {
			cp := *st
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStudents) ListCoursemates(_ context.Context, courseID, exclude string, limit int) ([]*model.Student, error) {
	var out []*model.Student
	for _, st := range s.rows {
		if st.CourseID == courseID && st.ID != exclude {
			cp := *st
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type concept struct{ course, label string }

type memConcepts struct {
	rows map[string]concept
}

func (c *memConcepts) CountInCourse(_ context.Context, courseID string, ids []string) (int, error) {
	n := 0
	for _, id := range ids {
		if row, ok := c.rows[id]; ok && row.course == courseID {
			n++
		}
	}
	return n, nil
}

func (c *memConcepts) Labels(_ context.Context, ids []string) ([]string, error) {
	labels := []string{}
	for _, id := range ids {
		if row, ok := c.rows[id]; ok {
			labels = append(labels, row.label)
		}
	}
	return labels, nil
}

type cachedStatus struct {
	status *model.StatusResult
	ttl    time.Duration
}

type recCache struct {
	mu                 sync.Mutex
	values             map[string]cachedStatus
	invalidatedCourses []string
	invalidatedKeys    []string
}

func newRecCache() *recCache {
	return &recCache{values: make(map[string]cachedStatus)}
}

func (c *recCache) GetStatus(_ context.Context, courseID, studentID string) (*model.StatusResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[courseID+":"+studentID]
	return v.status, ok
}

func (c *recCache) SetStatus(_ context.Context, courseID, studentID string, status *model.StatusResult, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[courseID+":"+studentID] = cachedStatus{status: status, ttl: ttl}
}

func (c *recCache) InvalidateStudent(_ context.Context, courseID string, studentIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range studentIDs {
		key := courseID + ":" + id
		delete(c.values, key)
		c.invalidatedKeys = append(c.invalidatedKeys, key)
	}
}

func (c *recCache) InvalidateCourse(_ context.Context, courseID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.values {
		if len(key) > len(courseID) && key[:len(courseID)+1] == courseID+":" {
			delete(c.values, key)
		}
	}
	c.invalidatedCourses = append(c.invalidatedCourses, courseID)
}

type notification struct {
	match        *model.Match
	participants []*model.Student
}

type recNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recNotifier) NotifyMatch(_ context.Context, match *model.Match, participants ...*model.Student) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{match: match, participants: participants})
}

// scriptedRandom возвращает заранее заданные значения (по модулю n), затем нули
type scriptedRandom struct {
	mu     sync.Mutex
	values []int
	calls  []int
}

func (r *scriptedRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, n)
	if len(r.values) == 0 {
		return 0
	}
	v := r.values[0]
	r.values = r.values[1:]
	return v % n
}

type fixture struct {
	pool     *memPool
	matches  *memMatches
	mastery  *memMastery
	students *memStudents
	concepts *memConcepts
	cache    *recCache
	notifier *recNotifier
	rnd      *scriptedRandom
	now      time.Time

	matcher *Matcher
	groups  *StudyGroupService
	status  *StatusService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		pool:     newMemPool(),
		mastery:  &memMastery{values: make(map[string]map[string]float64)},
		students: &memStudents{},
		concepts: &memConcepts{rows: make(map[string]concept)},
		cache:    newRecCache(),
		notifier: &recNotifier{},
		rnd:      &scriptedRandom{},
		now:      time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
	f.matches = &memMatches{pool: f.pool}

	stores := Stores{
		Pool:     f.pool,
		Matches:  f.matches,
		Mastery:  f.mastery,
		Students: f.students,
		Concepts: f.concepts,
	}
	clock := func() time.Time { return f.now }
	logger := zap.NewNop()

	f.matcher = NewMatcher(stores, f.cache, f.notifier, NewMeetingLinks("https://zoom.us", &scriptedRandom{}), f.rnd, logger)
	f.matcher.now = clock
	f.groups = NewStudyGroupService(stores, f.matcher, f.cache, 5*time.Minute, logger)
	f.groups.now = clock
	f.status = NewStatusService(stores, f.cache, logger)
	f.status.now = clock

	return f
}

func (f *fixture) addStudents(courseID string, ids ...string) {
	for _, id := range ids {
		f.students.rows = append(f.students.rows, &model.Student{
			ID:       id,
			CourseID: courseID,
			Name:     "Student " + id,
			Email:    id + "@example.edu",
		})
	}
}

func (f *fixture) addConcepts(courseID string, ids ...string) {
	for _, id := range ids {
		f.concepts.rows[id] = concept{course: courseID, label: "Label " + id}
	}
}

func (f *fixture) setMastery(studentID string, values map[string]float64) {
	f.mastery.values[studentID] = values
}

// seedWaiting кладёт студента в пул без подбора пары
func (f *fixture) seedWaiting(t *testing.T, courseID, studentID string, conceptIDs ...string) {
	t.Helper()
	_, err := f.groups.OptIn(context.Background(), OptInRequest{
		CourseID:     courseID,
		StudentID:    studentID,
		ConceptIDs:   conceptIDs,
		SkipMatching: true,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", studentID, err)
	}
	f.now = f.now.Add(time.Second)
}
