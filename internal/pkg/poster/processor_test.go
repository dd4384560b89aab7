package poster

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minivisionary/creditwallet/app/models"
	"github.com/minivisionary/creditwallet/internal/pkg/jobqueue"
)

type memRepository struct {
	posters map[uint]*models.Poster
}

func newMemRepository(posters ...*models.Poster) *memRepository {
	repo := &memRepository{posters: make(map[uint]*models.Poster)}
	for _, p := range posters {
		repo.posters[p.ID] = p
	}
	return repo
}

func (r *memRepository) Get(id uint) (*models.Poster, error) {
	p, ok := r.posters[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	copied := *p
	return &copied, nil
}

func (r *memRepository) Save(poster *models.Poster) error {
	copied := *poster
	r.posters[poster.ID] = &copied
	return nil
}

func (r *memRepository) MarkFailed(id uint, message string) (bool, error) {
	p, ok := r.posters[id]
	if !ok {
		return false, errors.New("record not found")
	}
	if p.Status == models.PosterStatusCompleted || p.Status == models.PosterStatusFailed {
		return false, nil
	}
	p.Status = models.PosterStatusFailed
	p.ErrorMessage = message
	return true, nil
}

type stubGenerator struct {
	image *GeneratedImage
	err   error
	calls int
}

func (g *stubGenerator) Generate(_ context.Context, _ GenerationRequest) (*GeneratedImage, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.image, nil
}

type memStore struct {
	objects map[string][]byte
}

func (s *memStore) Upload(_ context.Context, key string, data []byte, _ string) (string, error) {
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	s.objects[key] = data
	return "https://cdn.test/" + key, nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	delete(s.objects, key)
	return nil
}

type recordingRefunder struct {
	refunds []refundCall
}

type refundCall struct {
	accountID uint
	amount    int
	reference string
}

func (r *recordingRefunder) Refund(_ context.Context, accountID uint, amount int, reference, _ string) (int, error) {
	r.refunds = append(r.refunds, refundCall{accountID, amount, reference})
	return amount, nil
}

func pendingPoster() *models.Poster {
	return &models.Poster{
		ID:             9,
		AccountID:      7,
		Prompt:         "neon skyline",
		Size:           "1024x1024",
		Status:         models.PosterStatusPending,
		SpendReference: "poster:abc",
		SpendAmount:    10,
	}
}

func TestProcessCompletesPoster(t *testing.T) {
	repo := newMemRepository(pendingPoster())
	store := &memStore{}
	processor := NewProcessor(repo, &stubGenerator{image: &GeneratedImage{Data: []byte("png"), ContentType: "image/png"}}, store, &recordingRefunder{})

	err := processor.Process(context.Background(), &jobqueue.PosterGenerationJobPayload{PosterID: 9, AccountID: 7})
	require.NoError(t, err)

	poster, err := repo.Get(9)
	require.NoError(t, err)
	assert.Equal(t, models.PosterStatusCompleted, poster.Status)
	assert.Equal(t, "https://cdn.test/posters/7/9.png", poster.ImageURL)
	assert.Equal(t, "posters/7/9.png", poster.StorageKey)
	assert.Equal(t, []byte("png"), store.objects["posters/7/9.png"])
}

func TestProcessCompletedPosterIsNoOp(t *testing.T) {
	done := pendingPoster()
	done.Status = models.PosterStatusCompleted
	repo := newMemRepository(done)
	gen := &stubGenerator{image: &GeneratedImage{Data: []byte("png")}}
	processor := NewProcessor(repo, gen, &memStore{}, &recordingRefunder{})

	err := processor.Process(context.Background(), &jobqueue.PosterGenerationJobPayload{PosterID: 9})
	require.NoError(t, err)
	assert.Zero(t, gen.calls)
}

func TestProcessGenerationErrorPropagates(t *testing.T) {
	repo := newMemRepository(pendingPoster())
	processor := NewProcessor(repo, &stubGenerator{err: errors.New("backend down")}, &memStore{}, &recordingRefunder{})

	err := processor.Process(context.Background(), &jobqueue.PosterGenerationJobPayload{PosterID: 9})
	require.Error(t, err)

	poster, _ := repo.Get(9)
	assert.Equal(t, models.PosterStatusProcessing, poster.Status)
}

func TestOnPermanentFailureRefundsOnce(t *testing.T) {
	repo := newMemRepository(pendingPoster())
	refunder := &recordingRefunder{}
	processor := NewProcessor(repo, &stubGenerator{}, &memStore{}, refunder)

	payload := &jobqueue.PosterGenerationJobPayload{PosterID: 9, AccountID: 7}
	processor.OnPermanentFailure(context.Background(), payload, "backend down")

	poster, _ := repo.Get(9)
	assert.Equal(t, models.PosterStatusFailed, poster.Status)
	assert.Equal(t, "backend down", poster.ErrorMessage)
	require.Len(t, refunder.refunds, 1)
	assert.Equal(t, refundCall{accountID: 7, amount: 10, reference: "poster:abc"}, refunder.refunds[0])

	// A second failure notification must not refund again
	processor.OnPermanentFailure(context.Background(), payload, "backend down")
	assert.Len(t, refunder.refunds, 1)
}

func TestOnPermanentFailureSkipsCompletedPoster(t *testing.T) {
	done := pendingPoster()
	done.Status = models.PosterStatusCompleted
	repo := newMemRepository(done)
	refunder := &recordingRefunder{}
	processor := NewProcessor(repo, &stubGenerator{}, &memStore{}, refunder)

	processor.OnPermanentFailure(context.Background(), &jobqueue.PosterGenerationJobPayload{PosterID: 9}, "late failure")
	assert.Empty(t, refunder.refunds)

	poster, _ := repo.Get(9)
	assert.Equal(t, models.PosterStatusCompleted, poster.Status)
}
