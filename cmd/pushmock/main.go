package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DeliveryStatus represents the delivery status of a pushed event
type DeliveryStatus string

const (
	StatusDelivered DeliveryStatus = "DELIVERED"
	StatusFailed    DeliveryStatus = "FAILED"
	StatusPending   DeliveryStatus = "PENDING"
)

// PushEventRequest represents an event push request
type PushEventRequest struct {
	EventID    string          `json:"event_id" binding:"required"`
	Topic      string          `json:"topic" binding:"required"`
	Channels   []string        `json:"channels" binding:"required"`
	Recipients []int64         `json:"recipients"`
	Payload    json.RawMessage `json:"payload"`
}

// PushEventResponse represents the response from pushing an event
type PushEventResponse struct {
	EventID     string         `json:"event_id"`
	Status      DeliveryStatus `json:"status"`
	DeliveredAt *time.Time     `json:"delivered_at,omitempty"`
	FanoutCount int            `json:"fanout_count"`
	ErrorCode   string         `json:"error_code,omitempty"`
	ErrorMsg    string         `json:"error_message,omitempty"`
	ProviderID  string         `json:"provider_id"`
	ProcessedAt time.Time      `json:"processed_at"`
}

// PresenceResponse represents channel presence info
type PresenceResponse struct {
	Channel     string `json:"channel"`
	Subscribers int    `json:"subscribers"`
	ProviderID  string `json:"provider_id"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status       string    `json:"status"`
	ProviderID   string    `json:"provider_id"`
	Timestamp    time.Time `json:"timestamp"`
	DeliveryRate float64   `json:"delivery_rate"`
}

// MockFabric simulates a realtime push fabric node
type MockFabric struct {
	deliveryRate float64
	minDelay     time.Duration
	maxDelay     time.Duration
	providerID   string
	rng          *rand.Rand
}

// NewMockFabric creates a new mock fabric instance
func NewMockFabric(deliveryRate float64, minDelay, maxDelay time.Duration) *MockFabric {
	return &MockFabric{
		deliveryRate: deliveryRate,
		minDelay:     minDelay,
		maxDelay:     maxDelay,
		providerID:   "MOCK_FABRIC_" + uuid.New().String()[:8],
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// simulateFanout simulates delivering an event to subscribed clients
func (m *MockFabric) simulateFanout(req *PushEventRequest) *PushEventResponse {
	delay := m.randomDelay()

	// Simulate network delay
	time.Sleep(delay)

	response := &PushEventResponse{
		EventID:     req.EventID,
		ProviderID:  m.providerID,
		ProcessedAt: time.Now(),
	}

	// Determine success or failure
	if m.shouldSucceed() {
		now := time.Now()
		response.Status = StatusDelivered
		response.DeliveredAt = &now
		// Pretend a random subset of each channel is connected
		response.FanoutCount = m.rng.Intn(3*len(req.Channels) + 1)

		log.Info().
			Str("event_id", req.EventID).
			Str("topic", req.Topic).
			Strs("channels", req.Channels).
			Int("fanout", response.FanoutCount).
			Dur("delay", delay).
			Msg("Event delivered successfully")
	} else {
		response.Status = StatusFailed
		response.ErrorCode = m.randomErrorCode()
		response.ErrorMsg = m.errorMessage(response.ErrorCode)

		log.Warn().
			Str("event_id", req.EventID).
			Str("topic", req.Topic).
			Str("error_code", response.ErrorCode).
			Msg("Event delivery failed")
	}

	return response
}

func (m *MockFabric) randomDelay() time.Duration {
	delta := m.maxDelay - m.minDelay
	randomDelta := time.Duration(m.rng.Int63n(int64(delta)))
	return m.minDelay + randomDelta
}

func (m *MockFabric) shouldSucceed() bool {
	return m.rng.Float64() < m.deliveryRate
}

func (m *MockFabric) randomErrorCode() string {
	errorCodes := []string{
		"NETWORK_ERROR",
		"TIMEOUT",
		"CHANNEL_LIMIT",
		"PAYLOAD_TOO_LARGE",
		"FABRIC_REJECTED",
	}
	return errorCodes[m.rng.Intn(len(errorCodes))]
}

func (m *MockFabric) errorMessage(code string) string {
	messages := map[string]string{
		"NETWORK_ERROR":     "Network connectivity issue with fabric node",
		"TIMEOUT":           "Event delivery timed out",
		"CHANNEL_LIMIT":     "Too many channels in a single push",
		"PAYLOAD_TOO_LARGE": "Event payload exceeds fabric limits",
		"FABRIC_REJECTED":   "Fabric node rejected the event",
	}

	if msg, ok := messages[code]; ok {
		return msg
	}
	return "Unknown error occurred"
}

// Handler struct holds the mock fabric and routes
type Handler struct {
	fabric *MockFabric
}

func NewHandler(fabric *MockFabric) *Handler {
	return &Handler{fabric: fabric}
}

// PushEvent handles single event push requests
func (h *Handler) PushEvent(c *gin.Context) {
	var req PushEventRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	log.Info().
		Str("event_id", req.EventID).
		Str("topic", req.Topic).
		Strs("channels", req.Channels).
		Msg("Received event push request")

	response := h.fabric.simulateFanout(&req)

	statusCode := http.StatusOK
	if response.Status == StatusFailed {
		statusCode = http.StatusAccepted // 202: accepted but failed delivery
	}

	c.JSON(statusCode, response)
}

// GetPresence handles channel presence requests
func (h *Handler) GetPresence(c *gin.Context) {
	channel := c.Param("channel")

	if channel == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "channel is required",
		})
		return
	}

	// Simulate API delay
	time.Sleep(100 * time.Millisecond)

	c.JSON(http.StatusOK, PresenceResponse{
		Channel:     channel,
		Subscribers: h.fabric.rng.Intn(5),
		ProviderID:  h.fabric.providerID,
	})
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(c *gin.Context) {
	// Simulate 5% downtime
	if h.fabric.rng.Float64() < 0.05 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  "Fabric node temporarily unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:       "healthy",
		ProviderID:   h.fabric.providerID,
		Timestamp:    time.Now(),
		DeliveryRate: h.fabric.deliveryRate,
	})
}

// UpdateConfig allows changing fabric configuration at runtime
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		DeliveryRate *float64 `json:"delivery_rate"`
	}

	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if config.DeliveryRate != nil {
		if *config.DeliveryRate >= 0 && *config.DeliveryRate <= 1.0 {
			h.fabric.deliveryRate = *config.DeliveryRate
			log.Info().Float64("rate", *config.DeliveryRate).Msg("Updated delivery rate")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Configuration updated",
		"delivery_rate": h.fabric.deliveryRate,
	})
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	// Add request logging middleware
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	// API routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/push/events", handler.PushEvent)
		v1.GET("/push/presence/:channel", handler.GetPresence)
		v1.GET("/health", handler.HealthCheck)
		v1.PUT("/config", handler.UpdateConfig)
	}

	// Root health check
	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Get configuration from environment
	port := getEnv("PORT", "8081")
	deliveryRate := getEnvFloat("DELIVERY_RATE", 1)
	minDelay := getEnvDuration("MIN_DELAY", 100*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", 1*time.Second)

	log.Info().
		Str("port", port).
		Float64("delivery_rate", deliveryRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Msg("Starting Mock Push Fabric")

	// Create mock fabric
	fabric := NewMockFabric(deliveryRate, minDelay, maxDelay)
	handler := NewHandler(fabric)
	router := SetupRouter(handler)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
