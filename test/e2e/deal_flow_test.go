package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/propia/deal-gateway/internal/events"
	"github.com/propia/deal-gateway/internal/handlers"
	"github.com/propia/deal-gateway/internal/model"
	"github.com/propia/deal-gateway/internal/queue"
	"github.com/propia/deal-gateway/internal/repository"
	"github.com/propia/deal-gateway/internal/services"
	"github.com/propia/deal-gateway/pkg/pg"
	"github.com/propia/deal-gateway/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testDB = pg.DB

type TestEnvironment struct {
	DB                 *pg.DB
	Redis              *miniredis.Miniredis
	RedisAdapter       redis.RedisAdapter
	Queue              *queue.Queue
	ListingRepo        *repository.ListingRepository
	TransactionRepo    *repository.TransactionRepository
	ChatRepo           *repository.ChatRepository
	NotificationRepo   *repository.NotificationRepository
	TransactionService *services.TransactionService
	ChatService        *services.ChatService
	TransactionHandler *handlers.TransactionHandler
}

func setupE2EEnvironment(t *testing.T) *TestEnvironment {
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

	pgDB := &testDB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Use unique connection name per test to avoid global adapter caching issues
	connName := fmt.Sprintf("test-%d", time.Now().UnixNano())
	redisAdapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	queueConfig := queue.QueueConfig{
		Name:              "test:events",
		ConsumerGroup:     "test-group",
		ConsumerName:      "test-consumer",
		MaxRetries:        3,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      100 * time.Millisecond,
		BatchSize:         10,
		MaxLen:            1000,
		EnableDLQ:         true,
	}

	q, err := queue.NewQueue(redisAdapter, queueConfig)
	require.NoError(t, err)

	listingRepo := repository.NewListingRepository(pgDB)
	transactionRepo := repository.NewTransactionRepository(pgDB)
	chatRepo := repository.NewChatRepository(pgDB)
	notificationRepo := repository.NewNotificationRepository(pgDB)

	publisher := events.NewRedisPublisher(redisAdapter, q)
	transactionService := services.NewTransactionService(transactionRepo, listingRepo, notificationRepo, chatRepo, publisher)
	chatService := services.NewChatService(chatRepo, listingRepo, publisher)
	transactionHandler := handlers.NewTransactionHandler(transactionService)

	return &TestEnvironment{
		DB:                 pgDB,
		Redis:              mr,
		RedisAdapter:       redisAdapter,
		Queue:              q,
		ListingRepo:        listingRepo,
		TransactionRepo:    transactionRepo,
		ChatRepo:           chatRepo,
		NotificationRepo:   notificationRepo,
		TransactionService: transactionService,
		ChatService:        chatService,
		TransactionHandler: transactionHandler,
	}
}

func (env *TestEnvironment) Cleanup() {
	// Stop queue first (gracefully drain messages)
	if env.Queue != nil {
		_ = env.Queue.Stop(5 * time.Second)
	}
	// Give time for any in-flight operations to complete
	time.Sleep(100 * time.Millisecond)
	// Then close Redis
	if env.Redis != nil {
		env.Redis.Close()
	}
}

func (env *TestEnvironment) createListing(t *testing.T, kind string, ownerID int64) int64 {
	listing := &repository.ListingEntity{
		Kind:      kind,
		OwnerID:   ownerID,
		Title:     "Casa campestre en Llanogrande",
		Price:     380_000_000,
		Currency:  "COP",
		Available: true,
	}
	err := env.DB.Write(context.Background()).Create(listing).Error
	require.NoError(t, err)
	return listing.ID
}

func TestE2E_CreateReservesListingAndEnqueues(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()
	listingID := env.createListing(t, "property", 2)

	deal, err := env.TransactionService.Create(ctx, model.TransactionCreateRequest{
		BuyerID:     1,
		ListingID:   listingID,
		ListingKind: model.ListingKindProperty,
		OfferAmount: 360_000_000,
		Currency:    "COP",
	})
	require.NoError(t, err)
	assert.NotZero(t, deal.ID)
	assert.Equal(t, model.StatusPendingValidation, deal.Status)
	assert.True(t, deal.Escrow)

	var listing repository.ListingEntity
	err = env.DB.Read(ctx).First(&listing, listingID).Error
	require.NoError(t, err)
	assert.False(t, listing.Available)

	stats, err := env.Queue.GetStats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.TotalMessages, int64(1))
}

func TestE2E_DuplicateCreateReturnsExistingDeal(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()
	listingID := env.createListing(t, "property", 2)

	req := model.TransactionCreateRequest{
		BuyerID:     1,
		ListingID:   listingID,
		ListingKind: model.ListingKindProperty,
		OfferAmount: 360_000_000,
		Currency:    "COP",
	}

	first, err := env.TransactionService.Create(ctx, req)
	require.NoError(t, err)

	_, err = env.TransactionService.Create(ctx, req)
	var dup *services.DuplicateActiveTransactionError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.ID, dup.ExistingID)
}

func TestE2E_SaleLifecycle(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()
	listingID := env.createListing(t, "property", 2)

	deal, err := env.TransactionService.Create(ctx, model.TransactionCreateRequest{
		BuyerID:     1,
		ListingID:   listingID,
		ListingKind: model.ListingKindProperty,
		OfferAmount: 360_000_000,
		Currency:    "COP",
	})
	require.NoError(t, err)

	deal, err = env.TransactionService.Validate(ctx, deal.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, deal.Status)
	assert.NotNil(t, deal.ValidatedAt)

	deal, err = env.TransactionService.Pay(ctx, deal.ID, 1, model.PayRequest{
		Method:      "pse",
		ExternalRef: "pse-991",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusInEscrow, deal.Status)
	assert.True(t, deal.Paid)
	require.NotNil(t, deal.Payment)
	assert.Equal(t, "pse", deal.Payment.Method)

	deal, err = env.TransactionService.Release(ctx, deal.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, deal.Status)
	assert.NotNil(t, deal.CompletedAt)

	// Each transition appends to the counterparty's feed.
	var count int64
	env.DB.Read(ctx).Model(&repository.NotificationEntity{}).
		Where("transaction_id = ?", deal.ID).Count(&count)
	assert.GreaterOrEqual(t, count, int64(3))
}

func TestE2E_RentalCompletesOnPay(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()
	listingID := env.createListing(t, "rental_property", 2)

	deal, err := env.TransactionService.Create(ctx, model.TransactionCreateRequest{
		BuyerID:     1,
		ListingID:   listingID,
		ListingKind: model.ListingKindRentalProperty,
		OfferAmount: 1_800_000,
		Currency:    "COP",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, deal.Status)
	assert.Equal(t, model.DealKindRental, deal.DealKind)
	assert.False(t, deal.Escrow)

	deal, err = env.TransactionService.Pay(ctx, deal.ID, 1, model.PayRequest{
		Method:      "nequi",
		ExternalRef: "nq-17",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, deal.Status)
}

func TestE2E_CancelPutsListingBackOnMarket(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()
	listingID := env.createListing(t, "property", 2)

	deal, err := env.TransactionService.Create(ctx, model.TransactionCreateRequest{
		BuyerID:     1,
		ListingID:   listingID,
		ListingKind: model.ListingKindProperty,
		OfferAmount: 360_000_000,
		Currency:    "COP",
	})
	require.NoError(t, err)

	deal, err = env.TransactionService.Cancel(ctx, deal.ID, 1, "cambio de planes")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, deal.Status)

	var listing repository.ListingEntity
	err = env.DB.Read(ctx).First(&listing, listingID).Error
	require.NoError(t, err)
	assert.True(t, listing.Available)

	// The listing can be reserved again by another buyer.
	_, err = env.TransactionService.Create(ctx, model.TransactionCreateRequest{
		BuyerID:     3,
		ListingID:   listingID,
		ListingKind: model.ListingKindProperty,
		OfferAmount: 340_000_000,
		Currency:    "COP",
	})
	require.NoError(t, err)
}

func TestE2E_InquiryThreadLinksToDeal(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()
	listingID := env.createListing(t, "property", 2)

	thread, err := env.ChatService.GetOrCreate(ctx, model.ListingKindProperty, listingID, 1)
	require.NoError(t, err)
	assert.Nil(t, thread.TransactionID)

	_, err = env.ChatService.Append(ctx, model.ChatAppendRequest{
		ThreadID: thread.ID,
		SenderID: 1,
		Body:     "me interesa, abro la negociacion",
	})
	require.NoError(t, err)

	deal, err := env.TransactionService.Create(ctx, model.TransactionCreateRequest{
		BuyerID:     1,
		ListingID:   listingID,
		ListingKind: model.ListingKindProperty,
		OfferAmount: 360_000_000,
		Currency:    "COP",
	})
	require.NoError(t, err)

	linked, err := env.ChatRepo.GetByID(ctx, thread.ID)
	require.NoError(t, err)
	require.NotNil(t, linked.TransactionID)
	assert.Equal(t, deal.ID, *linked.TransactionID)
}

func TestE2E_EventConsumption(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()
	listingID := env.createListing(t, "property", 2)

	deal, err := env.TransactionService.Create(ctx, model.TransactionCreateRequest{
		BuyerID:     1,
		ListingID:   listingID,
		ListingKind: model.ListingKindProperty,
		OfferAmount: 360_000_000,
		Currency:    "COP",
	})
	require.NoError(t, err)

	received := make(chan events.Event, 1)
	handler := func(ctx context.Context, qMsg *queue.Message) error {
		var event events.Event
		if err := json.Unmarshal(qMsg.Data, &event); err != nil {
			return err
		}
		received <- event
		return nil
	}

	err = env.Queue.Consume(handler)
	require.NoError(t, err)

	select {
	case event := <-received:
		assert.Equal(t, events.TopicTransactionCreated, event.Topic)
		assert.Equal(t, deal.ID, event.TransactionID)
		assert.Contains(t, event.Channels(), fmt.Sprintf("transaction.%d", deal.ID))
	case <-time.After(3 * time.Second):
		t.Fatal("event not consumed within timeout")
	}
}

func TestE2E_AppealFreezesDeal(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()
	listingID := env.createListing(t, "property", 2)

	deal, err := env.TransactionService.Create(ctx, model.TransactionCreateRequest{
		BuyerID:     1,
		ListingID:   listingID,
		ListingKind: model.ListingKindProperty,
		OfferAmount: 360_000_000,
		Currency:    "COP",
	})
	require.NoError(t, err)

	deal, err = env.TransactionService.Appeal(ctx, deal.ID, 1, "el vendedor no entrega los papeles")
	require.NoError(t, err)
	assert.Equal(t, model.StatusAppealed, deal.Status)
	assert.Equal(t, model.AppealPending, deal.Appeal.State)
	assert.Equal(t, int64(1), deal.Appeal.RaisedBy)

	// Frozen: no further lifecycle transitions.
	_, err = env.TransactionService.Validate(ctx, deal.ID, 2)
	assert.ErrorIs(t, err, services.ErrInvalidTransition)
}

func TestE2E_SelfDealingRejected(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()
	listingID := env.createListing(t, "property", 2)

	_, err := env.TransactionService.Create(ctx, model.TransactionCreateRequest{
		BuyerID:     2,
		ListingID:   listingID,
		ListingKind: model.ListingKindProperty,
		OfferAmount: 360_000_000,
		Currency:    "COP",
	})
	assert.ErrorIs(t, err, services.ErrSelfDealing)

	var listing repository.ListingEntity
	err = env.DB.Read(ctx).First(&listing, listingID).Error
	require.NoError(t, err)
	assert.True(t, listing.Available)
}
