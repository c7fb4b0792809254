package helpers

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/propia/deal-gateway/internal/repository"
	"github.com/propia/deal-gateway/pkg/pg"
	"github.com/propia/deal-gateway/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.ListingEntity{},
		&repository.TransactionEntity{},
		&repository.ChatThreadEntity{},
		&repository.ChatMessageEntity{},
		&repository.NotificationEntity{},
	)
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	adapter, err := redis.NewRedisAdapter("test", "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestListing(t *testing.T, db *pg.DB, kind string, ownerID, price int64) *repository.ListingEntity {
	ctx := context.Background()
	listing := &repository.ListingEntity{
		Kind:      kind,
		OwnerID:   ownerID,
		Title:     "Apartamento en Laureles",
		Price:     price,
		Currency:  "COP",
		Available: true,
	}
	err := db.Write(ctx).Create(listing).Error
	require.NoError(t, err)
	return listing
}

func CreateTestDeal(t *testing.T, db *pg.DB, listingID, buyerID, sellerID int64, status string) *repository.TransactionEntity {
	ctx := context.Background()
	deal := &repository.TransactionEntity{
		ListingID:   listingID,
		ListingKind: "property",
		DealKind:    "sale",
		BuyerID:     buyerID,
		SellerID:    sellerID,
		OfferAmount: 250_000_000,
		Currency:    "COP",
		Status:      status,
		Escrow:      true,
		AppealState: "none",
		CreatedAt:   time.Now(),
	}
	err := db.Write(ctx).Create(deal).Error
	require.NoError(t, err)
	return deal
}

func CreateTestNotification(t *testing.T, db *pg.DB, recipientID, transactionID int64, message string) *repository.NotificationEntity {
	ctx := context.Background()
	n := &repository.NotificationEntity{
		RecipientID:   recipientID,
		TransactionID: transactionID,
		Message:       message,
	}
	err := db.Write(ctx).Create(n).Error
	require.NoError(t, err)
	return n
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
