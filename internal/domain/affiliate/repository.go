package affiliate

import "context"

// Repository stores timeline posts and applied purchases.
type Repository interface {
	Save(ctx context.Context, post SharedPost) error
	GetByID(ctx context.Context, postID string) (SharedPost, bool, error)
	List(ctx context.Context) ([]SharedPost, error)
	// RecordPurchase increments the post's purchase count once per
	// (postID, buyerID). applied is false when the pair was seen before.
	RecordPurchase(ctx context.Context, postID, buyerID string) (post SharedPost, applied bool, err error)
	HasPurchased(ctx context.Context, postID, buyerID string) (bool, error)
}
