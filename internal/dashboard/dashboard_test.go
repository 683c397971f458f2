package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/eventcompass/eventcompass/internal/connectivity"
	"github.com/eventcompass/eventcompass/internal/model"
	"github.com/eventcompass/eventcompass/internal/remote"
	"github.com/eventcompass/eventcompass/internal/service"
	"github.com/eventcompass/eventcompass/internal/store"
)

func TestServerStartStop(t *testing.T) {
	config := &Config{
		Port:   0, // Use random available port
		Logger: log.New(os.Stderr, "[test] ", log.LstdFlags),
	}

	server := NewServer(config)

	// Start server
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	// Check that server is listening
	addr := server.GetAddr()
	if addr == "" {
		t.Fatal("Server address is empty")
	}

	// Stop server
	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func TestWebSocketConnection(t *testing.T) {
	config := &Config{
		Port:   0,
		Logger: log.New(os.Stderr, "[test] ", log.LstdFlags),
	}

	server := NewServer(config)

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	time.Sleep(100 * time.Millisecond)

	// Connect WebSocket client
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws://" + server.GetAddr() + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Verify client count
	if count := server.ClientCount(); count != 1 {
		t.Errorf("Expected 1 client, got %d", count)
	}

	// Read welcome message
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read welcome message: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}

	if msg.Type != MessageTypeStats {
		t.Errorf("Expected welcome message type %s, got %s", MessageTypeStats, msg.Type)
	}
}

func TestMultipleClients(t *testing.T) {
	config := &Config{
		Port:   0,
		Logger: log.New(os.Stderr, "[test] ", log.LstdFlags),
	}

	server := NewServer(config)

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws://" + server.GetAddr() + "/ws"

	// Connect multiple clients
	numClients := 3
	clients := make([]*websocket.Conn, numClients)
	for i := 0; i < numClients; i++ {
		conn, _, err := websocket.Dial(ctx, wsURL, nil)
		if err != nil {
			t.Fatalf("Failed to connect client %d: %v", i, err)
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		clients[i] = conn

		// Read welcome message
		_, _, err = conn.Read(ctx)
		if err != nil {
			t.Fatalf("Failed to read welcome message for client %d: %v", i, err)
		}
	}

	// Verify client count
	if count := server.ClientCount(); count != numClients {
		t.Errorf("Expected %d clients, got %d", numClients, count)
	}
}

func TestMessageBroadcast(t *testing.T) {
	config := &Config{
		Port:   0,
		Logger: log.New(os.Stderr, "[test] ", log.LstdFlags),
	}

	server := NewServer(config)

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws://" + server.GetAddr() + "/ws"

	// Connect client
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Read welcome message
	_, _, err = conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read welcome message: %v", err)
	}

	// Broadcast a test message
	testData := EntityUpdateData{Kind: "member"}

	dataJSON, _ := json.Marshal(testData)
	testMsg := Message{
		Type:      MessageTypeEntityUpdate,
		Timestamp: time.Now(),
		Data:      dataJSON,
	}

	server.Broadcast(testMsg)

	// Read broadcasted message
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read broadcast message: %v", err)
	}

	var received Message
	if err := json.Unmarshal(data, &received); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}

	if received.Type != MessageTypeEntityUpdate {
		t.Errorf("Expected message type %s, got %s", MessageTypeEntityUpdate, received.Type)
	}

	var receivedData EntityUpdateData
	if err := json.Unmarshal(received.Data, &receivedData); err != nil {
		t.Fatalf("Failed to unmarshal entity data: %v", err)
	}

	if receivedData.Kind != testData.Kind {
		t.Errorf("Expected kind %s, got %s", testData.Kind, receivedData.Kind)
	}
}

// newTestService builds an offline service over a throwaway store so the
// handler has a real event source.
func newTestService(t *testing.T) *service.Service {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "dashboard_test.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	svc := service.New(service.Config{
		Store:  st,
		Client: remote.New("http://localhost:1", nil),
		Signal: connectivity.NewFlag(false),
		Logger: log.New(os.Stderr, "[test-service] ", log.LstdFlags),
	})
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("Initial reload failed: %v", err)
	}
	return svc
}

func TestHandlerEntityEvents(t *testing.T) {
	config := &Config{
		Port:   0,
		Logger: log.New(os.Stderr, "[test] ", log.LstdFlags),
	}

	server := NewServer(config)

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	time.Sleep(100 * time.Millisecond)

	svc := newTestService(t)
	handler := NewHandler(server, svc, log.New(os.Stderr, "[test-handler] ", log.LstdFlags))
	handler.Start()
	defer handler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws://" + server.GetAddr() + "/ws"

	// Connect client
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Read welcome message
	_, _, err = conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read welcome message: %v", err)
	}

	// A mutation on the service must surface as entity_update then stats.
	if _, err := svc.CreateMember(ctx, model.MemberInput{Name: "Aoi", Part: "stage", Position: "lead"}); err != nil {
		t.Fatalf("CreateMember failed: %v", err)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read entity update: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}

	if msg.Type != MessageTypeEntityUpdate {
		t.Errorf("Expected message type %s, got %s", MessageTypeEntityUpdate, msg.Type)
	}

	var entityData EntityUpdateData
	if err := json.Unmarshal(msg.Data, &entityData); err != nil {
		t.Fatalf("Failed to unmarshal entity data: %v", err)
	}

	if entityData.Kind != "member" {
		t.Errorf("Expected kind member, got %s", entityData.Kind)
	}

	// Read stats message
	_, data, err = conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read stats update: %v", err)
	}

	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal stats message: %v", err)
	}

	if msg.Type != MessageTypeStats {
		t.Errorf("Expected message type %s, got %s", MessageTypeStats, msg.Type)
	}

	var stats StatsData
	if err := json.Unmarshal(msg.Data, &stats); err != nil {
		t.Fatalf("Failed to unmarshal stats data: %v", err)
	}

	if stats.Members != 1 {
		t.Errorf("Expected 1 member in stats, got %d", stats.Members)
	}

	if stats.Pending != 1 {
		t.Errorf("Expected 1 pending operation in stats, got %d", stats.Pending)
	}
}

func TestHandlerStopDetaches(t *testing.T) {
	config := &Config{
		Port:   0,
		Logger: log.New(os.Stderr, "[test] ", log.LstdFlags),
	}

	server := NewServer(config)

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	time.Sleep(100 * time.Millisecond)

	svc := newTestService(t)
	handler := NewHandler(server, svc, log.New(os.Stderr, "[test-handler] ", log.LstdFlags))
	handler.Start()
	handler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws://" + server.GetAddr() + "/ws"

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Read welcome message
	_, _, err = conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read welcome message: %v", err)
	}

	// With the handler detached, a mutation must not reach the client.
	if _, err := svc.CreateMember(ctx, model.MemberInput{Name: "Aoi", Part: "stage", Position: "lead"}); err != nil {
		t.Fatalf("CreateMember failed: %v", err)
	}

	readCtx, readCancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer readCancel()
	if _, _, err := conn.Read(readCtx); err == nil {
		t.Error("Detached handler still broadcast a message")
	}
}
