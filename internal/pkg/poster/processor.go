package poster

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/minivisionary/creditwallet/app/models"
	"github.com/minivisionary/creditwallet/internal/pkg/jobqueue"
	"github.com/minivisionary/creditwallet/internal/pkg/storage"
	"github.com/minivisionary/creditwallet/internal/pkg/wallet"
)

// Refunder returns spent credits when a poster permanently fails.
type Refunder interface {
	Refund(ctx context.Context, accountID uint, amount int, reference, notes string) (int, error)
}

// Processor executes poster generation jobs: render, upload, update the
// poster record. Implements the job queue's poster handler.
type Processor struct {
	repo      Repository
	generator Generator
	images    storage.Store
	wallet    Refunder
}

// NewProcessor wires a poster job processor
func NewProcessor(repo Repository, generator Generator, images storage.Store, refunder Refunder) *Processor {
	return &Processor{repo: repo, generator: generator, images: images, wallet: refunder}
}

// NewProcessorFromDB builds a processor on a GORM DB handle
func NewProcessorFromDB(db *gorm.DB, generator Generator, images storage.Store) *Processor {
	return NewProcessor(NewRepository(db), generator, images, wallet.NewServiceFromDB(db))
}

// Process renders one poster. Errors bubble up to the queue for retry.
func (p *Processor) Process(ctx context.Context, payload *jobqueue.PosterGenerationJobPayload) error {
	poster, err := p.repo.Get(payload.PosterID)
	if err != nil {
		return fmt.Errorf("loading poster %d: %w", payload.PosterID, err)
	}

	switch poster.Status {
	case models.PosterStatusCompleted:
		// Redelivered job; the work is already done
		return nil
	case models.PosterStatusFailed:
		return nil
	}

	poster.Status = models.PosterStatusProcessing
	if err := p.repo.Save(poster); err != nil {
		return fmt.Errorf("marking poster %d processing: %w", poster.ID, err)
	}

	image, err := p.generator.Generate(ctx, GenerationRequest{
		Prompt: poster.Prompt,
		Style:  poster.Style,
		Size:   poster.Size,
	})
	if err != nil {
		return fmt.Errorf("generating poster %d: %w", poster.ID, err)
	}

	objectKey := fmt.Sprintf("posters/%d/%d.png", poster.AccountID, poster.ID)
	url, err := p.images.Upload(ctx, objectKey, image.Data, image.ContentType)
	if err != nil {
		return fmt.Errorf("uploading poster %d: %w", poster.ID, err)
	}

	poster.Status = models.PosterStatusCompleted
	poster.ImageURL = url
	poster.StorageKey = objectKey
	poster.ErrorMessage = ""
	if err := p.repo.Save(poster); err != nil {
		return fmt.Errorf("completing poster %d: %w", poster.ID, err)
	}

	log.Infof("[Poster] Generated poster %d for account %d", poster.ID, poster.AccountID)
	return nil
}

// OnPermanentFailure marks the poster failed and refunds the spent credits.
// The refund carries the original spend reference so the ledger ties the
// spend and its reversal together.
func (p *Processor) OnPermanentFailure(ctx context.Context, payload *jobqueue.PosterGenerationJobPayload, reason string) {
	transitioned, err := p.repo.MarkFailed(payload.PosterID, reason)
	if err != nil {
		log.Errorf("[Poster] Failed to mark poster %d failed: %v", payload.PosterID, err)
		return
	}
	if !transitioned {
		return
	}

	poster, err := p.repo.Get(payload.PosterID)
	if err != nil {
		log.Errorf("[Poster] Failed to load poster %d for refund: %v", payload.PosterID, err)
		return
	}
	if poster.SpendAmount <= 0 {
		return
	}

	balance, err := p.wallet.Refund(ctx, poster.AccountID, poster.SpendAmount, poster.SpendReference, "poster generation failed")
	if err != nil {
		log.Errorf("[Poster] Refund for poster %d failed: %v", poster.ID, err)
		return
	}
	log.Infof("[Poster] Refunded %d credits to account %d (balance %d) for failed poster %d",
		poster.SpendAmount, poster.AccountID, balance, poster.ID)
}
