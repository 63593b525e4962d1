package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/riskibarqy/point-farm/internal/domain/affiliate"
)

type AffiliateRepository struct {
	mu        sync.RWMutex
	posts     map[string]affiliate.SharedPost
	order     []string
	purchases map[string]struct{}
}

func NewAffiliateRepository() *AffiliateRepository {
	return &AffiliateRepository{
		posts:     make(map[string]affiliate.SharedPost),
		purchases: make(map[string]struct{}),
	}
}

func (r *AffiliateRepository) Save(_ context.Context, post affiliate.SharedPost) error {
	if err := post.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.posts[post.ID]; !exists {
		r.order = append(r.order, post.ID)
	}
	r.posts[post.ID] = post
	return nil
}

func (r *AffiliateRepository) GetByID(_ context.Context, postID string) (affiliate.SharedPost, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	post, ok := r.posts[postID]
	return post, ok, nil
}

func (r *AffiliateRepository) List(_ context.Context) ([]affiliate.SharedPost, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]affiliate.SharedPost, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.posts[id])
	}
	return out, nil
}

func (r *AffiliateRepository) RecordPurchase(_ context.Context, postID, buyerID string) (affiliate.SharedPost, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, ok := r.posts[postID]
	if !ok {
		return affiliate.SharedPost{}, false, fmt.Errorf("%w: post=%s", affiliate.ErrPostNotFound, postID)
	}
	key := purchaseKey(postID, buyerID)
	if _, seen := r.purchases[key]; seen {
		return post, false, nil
	}
	r.purchases[key] = struct{}{}
	post.PurchaseCount++
	r.posts[postID] = post
	return post, true, nil
}

func (r *AffiliateRepository) HasPurchased(_ context.Context, postID, buyerID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.purchases[purchaseKey(postID, buyerID)]
	return ok, nil
}

func purchaseKey(postID, buyerID string) string {
	return postID + "::" + buyerID
}
