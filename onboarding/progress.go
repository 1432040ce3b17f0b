package onboarding

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// ProgressStore is the durable key-value port progress is saved to.
type ProgressStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// ProgressKey namespaces the saved blob by community.
func ProgressKey(communityID string) string {
	return "stripe_onboarding_" + communityID
}

type progressBlob struct {
	Data           OnboardingData `json:"data"`
	CurrentStep    int            `json:"currentStep"`
	CompletedSteps []int          `json:"completedSteps"`
	Timestamp      string         `json:"timestamp"`
}

const progressSchema = `{
  "type": "object",
  "required": ["data", "currentStep", "completedSteps", "timestamp"],
  "properties": {
    "data": {"type": "object"},
    "currentStep": {"type": "integer", "minimum": 1, "maximum": 5},
    "completedSteps": {
      "type": "array",
      "items": {"type": "integer", "minimum": 1, "maximum": 5}
    },
    "timestamp": {"type": "string"}
  }
}`

var progressSchemaLoader = gojsonschema.NewStringLoader(progressSchema)

// ProgressTracker holds the current step and the completed set. It is not
// safe for concurrent use; the wizard serializes access.
type ProgressTracker struct {
	key       string
	store     ProgressStore
	current   Step
	completed map[Step]bool
	now       func() time.Time
}

func NewProgressTracker(communityID string, store ProgressStore) *ProgressTracker {
	return &ProgressTracker{
		key:       ProgressKey(communityID),
		store:     store,
		current:   StepBusinessInfo,
		completed: map[Step]bool{},
		now:       time.Now,
	}
}

func (p *ProgressTracker) Current() Step { return p.current }

// Completed returns the completed steps in ascending order.
func (p *ProgressTracker) Completed() []Step {
	out := make([]Step, 0, len(p.completed))
	for s := range p.completed {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (p *ProgressTracker) IsCompleted(s Step) bool { return p.completed[s] }

// MarkStepCompleted is idempotent.
func (p *ProgressTracker) MarkStepCompleted(s Step) {
	if s.Valid() {
		p.completed[s] = true
	}
}

// CanEnter: the first step, any step after a completed one, or any step
// at or before the current one.
func (p *ProgressTracker) CanEnter(s Step) bool {
	if !s.Valid() {
		return false
	}
	return s == StepBusinessInfo || p.completed[s-1] || s <= p.current
}

// Advance completes the current step and moves forward. No-op on the last step.
func (p *ProgressTracker) Advance() {
	if p.current >= TotalSteps {
		return
	}
	p.completed[p.current] = true
	p.current++
}

// Retreat moves back one step without touching the completed set.
func (p *ProgressTracker) Retreat() {
	if p.current > StepBusinessInfo {
		p.current--
	}
}

// SetCurrent moves to s if it is enterable.
func (p *ProgressTracker) SetCurrent(s Step) bool {
	if !p.CanEnter(s) {
		return false
	}
	p.current = s
	return true
}

func (p *ProgressTracker) Reset() {
	p.current = StepBusinessInfo
	p.completed = map[Step]bool{}
}

// Encode renders the persisted blob for data and the current progress.
func (p *ProgressTracker) Encode(data OnboardingData) (string, error) {
	steps := make([]int, 0, len(p.completed))
	for _, s := range p.Completed() {
		steps = append(steps, int(s))
	}
	if data.Documents == nil {
		data.Documents = []Document{}
	}
	raw, err := json.Marshal(progressBlob{
		Data:           data,
		CurrentStep:    int(p.current),
		CompletedSteps: steps,
		Timestamp:      p.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("encode progress: %w", err)
	}
	return string(raw), nil
}

func (p *ProgressTracker) Persist(ctx context.Context, data OnboardingData) error {
	raw, err := p.Encode(data)
	if err != nil {
		return err
	}
	return p.Write(ctx, raw)
}

// Write stores an already encoded blob.
func (p *ProgressTracker) Write(ctx context.Context, raw string) error {
	if err := p.store.Set(ctx, p.key, raw); err != nil {
		return fmt.Errorf("persist progress %s: %w", p.key, err)
	}
	return nil
}

// Restore loads saved progress. Any failure leaves the defaults in place and
// reports false; it never returns an error.
func (p *ProgressTracker) Restore(ctx context.Context) (OnboardingData, bool) {
	p.Reset()
	raw, found, err := p.store.Get(ctx, p.key)
	if err != nil || !found {
		return OnboardingData{}, false
	}
	return p.Decode(raw)
}

// Decode applies a saved blob. Non-JSON or malformed input yields defaults.
func (p *ProgressTracker) Decode(raw string) (OnboardingData, bool) {
	p.Reset()
	result, err := gojsonschema.Validate(progressSchemaLoader, gojsonschema.NewStringLoader(raw))
	if err != nil || !result.Valid() {
		return OnboardingData{}, false
	}
	var blob progressBlob
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		return OnboardingData{}, false
	}
	for _, s := range blob.CompletedSteps {
		p.MarkStepCompleted(Step(s))
	}
	p.current = Step(blob.CurrentStep)
	return blob.Data, true
}

func (p *ProgressTracker) Clear(ctx context.Context) error {
	if err := p.store.Delete(ctx, p.key); err != nil {
		return fmt.Errorf("clear progress %s: %w", p.key, err)
	}
	return nil
}

// MemoryStore is an in-process ProgressStore.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]string{}}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
