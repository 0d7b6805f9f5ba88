package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	ordercorev1 "github.com/vladislavdragonenkov/ordercore/api/ordercore/v1"
	"github.com/vladislavdragonenkov/ordercore/internal/metrics"
	grpcsvc "github.com/vladislavdragonenkov/ordercore/internal/service/grpc"
	"github.com/vladislavdragonenkov/ordercore/internal/service/catalog"
	"github.com/vladislavdragonenkov/ordercore/internal/service/member"
	"github.com/vladislavdragonenkov/ordercore/internal/service/ordering"
	"github.com/vladislavdragonenkov/ordercore/internal/storage/memory"
)

type fakeClient struct {
	ordercorev1.OrderCoreServiceClient
	placeFn          func(context.Context, *ordercorev1.PlaceOrderRequest) (*ordercorev1.PlaceOrderResponse, error)
	cancelFn         func(context.Context, *ordercorev1.CancelOrderRequest) (*ordercorev1.CancelOrderResponse, error)
	registerMemberFn func(context.Context, *ordercorev1.RegisterMemberRequest) (*ordercorev1.RegisterMemberResponse, error)
	registerItemFn   func(context.Context, *ordercorev1.RegisterItemRequest) (*ordercorev1.RegisterItemResponse, error)
}

func (f *fakeClient) RegisterMember(ctx context.Context, req *ordercorev1.RegisterMemberRequest, _ ...grpc.CallOption) (*ordercorev1.RegisterMemberResponse, error) {
	return f.registerMemberFn(ctx, req)
}

func (f *fakeClient) RegisterItem(ctx context.Context, req *ordercorev1.RegisterItemRequest, _ ...grpc.CallOption) (*ordercorev1.RegisterItemResponse, error) {
	return f.registerItemFn(ctx, req)
}

func (f *fakeClient) PlaceOrder(ctx context.Context, req *ordercorev1.PlaceOrderRequest, _ ...grpc.CallOption) (*ordercorev1.PlaceOrderResponse, error) {
	return f.placeFn(ctx, req)
}

func (f *fakeClient) CancelOrder(ctx context.Context, req *ordercorev1.CancelOrderRequest, _ ...grpc.CallOption) (*ordercorev1.CancelOrderResponse, error) {
	return f.cancelFn(ctx, req)
}

func newBufClients(t *testing.T, n int) []ordercorev1.OrderCoreServiceClient {
	t.Helper()

	logger := log.New()
	logger.SetOutput(&bytes.Buffer{})
	entry := logger.WithField("component", "loadtest")

	store := memory.NewStore()
	service := grpcsvc.NewOrderCoreService(
		ordering.NewService(store,
			ordering.WithLogger(entry),
			ordering.WithMetrics(metrics.NewOrderMetricsWithRegisterer(prometheus.NewRegistry())),
		),
		member.NewService(store, entry),
		catalog.NewService(store, entry),
		entry,
	)

	listener := bufconn.Listen(1024 * 1024)
	server := grpc.NewServer()
	ordercorev1.RegisterOrderCoreServiceServer(server, service)
	go func() { _ = server.Serve(listener) }()

	dialer := func(context.Context, string) (net.Conn, error) { return listener.Dial() }
	clients := make([]ordercorev1.OrderCoreServiceClient, 0, n)
	for i := 0; i < n; i++ {
		//nolint:staticcheck // grpc.Dial is required for bufconn testing
		conn, err := grpc.Dial("bufnet", grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			t.Fatalf("dial bufconn: %v", err)
		}
		t.Cleanup(func() { _ = conn.Close() })
		clients = append(clients, ordercorev1.NewOrderCoreServiceClient(conn))
	}
	t.Cleanup(server.Stop)
	return clients
}

func TestParseMode(t *testing.T) {
	for _, mode := range []loadMode{modePlace, modePlaceCancel, modeContention} {
		got, err := parseMode(" " + string(mode) + " ")
		if err != nil || got != mode {
			t.Fatalf("parseMode(%s) = %s, %v", mode, got, err)
		}
	}
	if _, err := parseMode("create-pay"); err == nil {
		t.Fatal("expected error for unsupported mode")
	}
}

func TestParseConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := parseConfig(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.mode != modePlace || cfg.total != 400 || cfg.totalSet {
			t.Fatalf("unexpected defaults: %+v", cfg)
		}
		if cfg.stock != cfg.total {
			t.Fatalf("stock must default to total, got %d", cfg.stock)
		}
	})

	t.Run("contention stock", func(t *testing.T) {
		cfg, err := parseConfig([]string{"-mode=contention", "-total=10"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !cfg.totalSet || cfg.stock != 5 {
			t.Fatalf("unexpected contention config: %+v", cfg)
		}
	})

	t.Run("overrides", func(t *testing.T) {
		cfg, err := parseConfig([]string{"-duration=2s", "-timeout=1s", "-stock=7", "-cancel-rate=30", "-member-tag=bench"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.duration != 2*time.Second || cfg.timeout != time.Second || cfg.stock != 7 || cfg.cancelRate != 30 || cfg.memberTag != "bench" {
			t.Fatalf("unexpected config: %+v", cfg)
		}
	})

	invalid := map[string][]string{
		"duration must be >= 0":         {"-duration=-1s"},
		"total must be > 0":             {"-total=0"},
		"concurrency must be > 0":       {"-concurrency=0"},
		"connections must be > 0":       {"-connections=0"},
		"timeout must be > 0":           {"-timeout=0s"},
		"price must be > 0":             {"-price=0"},
		"stock must be >= 0":            {"-stock=-1"},
		"cancel-rate must be between":   {"-cancel-rate=101"},
		"member-tag is required":        {"-member-tag= "},
		"unsupported mode":              {"-mode=pay"},
		"flag provided but not defined": {"-currency=USD"},
	}
	for wantErr, args := range invalid {
		t.Run(wantErr, func(t *testing.T) {
			_, err := parseConfig(args)
			if err == nil || !strings.Contains(err.Error(), wantErr) {
				t.Fatalf("expected error containing %q, got %v", wantErr, err)
			}
		})
	}
}

func TestDispatchJobs(t *testing.T) {
	t.Run("count mode", func(t *testing.T) {
		jobs := make(chan int, 16)
		dispatchJobs(jobs, config{total: 5})

		var got []int
		for v := range jobs {
			got = append(got, v)
		}
		if !slices.Equal(got, []int{0, 1, 2, 3, 4}) {
			t.Fatalf("unexpected jobs sequence: %v", got)
		}
	})

	t.Run("duration with explicit max total", func(t *testing.T) {
		jobs := make(chan int, 16)
		dispatchJobs(jobs, config{duration: time.Second, total: 3, totalSet: true})
		count := 0
		for range jobs {
			count++
		}
		if count != 3 {
			t.Fatalf("expected 3 jobs, got %d", count)
		}
	})
}

func TestCollectorReport(t *testing.T) {
	c := newCollector()
	c.record("scenario", 10*time.Millisecond, codes.OK)
	c.record("scenario", 20*time.Millisecond, codes.Internal)
	c.record("PlaceOrder", 15*time.Millisecond, codes.FailedPrecondition)

	r := c.buildReport(time.Now(), 2*time.Second)
	if r.TotalScenarios != 2 || r.FailedScenarios != 1 || r.SuccessScenarios != 1 {
		t.Fatalf("unexpected report totals: %+v", r)
	}
	if r.RPS != 1 {
		t.Fatalf("expected rps 1, got %f", r.RPS)
	}
	place := r.Methods["PlaceOrder"]
	if place.Failed != 1 || place.Codes[codes.FailedPrecondition.String()] != 1 {
		t.Fatalf("unexpected PlaceOrder stats: %+v", place)
	}
}

func TestUtilityFunctions(t *testing.T) {
	if got := grpcCode(nil); got != codes.OK {
		t.Fatalf("grpcCode(nil) = %s, want OK", got)
	}
	if got := grpcCode(status.Error(codes.Unavailable, "down")); got != codes.Unavailable {
		t.Fatalf("unexpected grpc code: %s", got)
	}
	if got := ratio(1, 4); got != 0.25 {
		t.Fatalf("ratio mismatch: %f", got)
	}
	if got := ratio(1, 0); got != 0 {
		t.Fatalf("ratio with zero total must be 0, got %f", got)
	}

	summary := buildLatencySummary([]float64{10, 20, 30, 40})
	if summary.Min != 10 || summary.Max != 40 || summary.Avg != 25 || summary.P50 != 25 {
		t.Fatalf("unexpected latency summary: %+v", summary)
	}

	if !shouldCancel(config{mode: modePlaceCancel}, 99) {
		t.Fatal("place-cancel mode must always cancel")
	}
	if shouldCancel(config{mode: modeContention, cancelRate: 100}, 1) {
		t.Fatal("contention mode never cancels")
	}
	if !shouldCancel(config{mode: modePlace, cancelRate: 30}, 129) || shouldCancel(config{mode: modePlace, cancelRate: 30}, 130) {
		t.Fatal("cancel rate must follow index modulo 100")
	}

	if got := runTarget(config{duration: 2 * time.Second, total: 10, totalSet: true}); got != "duration:2s,max-total:10" {
		t.Fatalf("unexpected capped duration run target: %s", got)
	}
}

func TestWriteJSONReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")

	sample := report{TotalScenarios: 2, Stock: stockReport{ItemID: "item-1", Consistent: true}}
	if err := writeJSONReport(path, sample); err != nil {
		t.Fatalf("writeJSONReport error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var decoded report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if decoded.TotalScenarios != 2 || !decoded.Stock.Consistent {
		t.Fatalf("unexpected decoded report: %+v", decoded)
	}

	if err := writeJSONReport("../escape.json", sample); err == nil {
		t.Fatal("expected error for path outside current directory")
	}
}

func TestRunScenario_Outcomes(t *testing.T) {
	fx := fixture{memberID: "member-1", itemID: "item-1"}
	outOfStock := &fakeClient{
		placeFn: func(context.Context, *ordercorev1.PlaceOrderRequest) (*ordercorev1.PlaceOrderResponse, error) {
			return nil, status.Error(codes.FailedPrecondition, "insufficient stock")
		},
	}

	counts := &tally{}
	if err := runScenario(outOfStock, config{mode: modeContention, timeout: time.Second}, fx, 0, newCollector(), counts); err != nil {
		t.Fatalf("rejection in contention mode is expected, got %v", err)
	}
	if counts.rejected.Load() != 1 {
		t.Fatalf("expected one rejection, got %d", counts.rejected.Load())
	}

	err := runScenario(outOfStock, config{mode: modePlace, timeout: time.Second}, fx, 0, newCollector(), &tally{})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition in place mode, got %v", err)
	}

	emptyID := &fakeClient{
		placeFn: func(context.Context, *ordercorev1.PlaceOrderRequest) (*ordercorev1.PlaceOrderResponse, error) {
			return &ordercorev1.PlaceOrderResponse{}, nil
		},
	}
	if err := runScenario(emptyID, config{mode: modePlace, timeout: time.Second}, fx, 0, newCollector(), &tally{}); err == nil || !strings.Contains(err.Error(), "empty order id") {
		t.Fatalf("expected empty id error, got %v", err)
	}

	var cancelled string
	ok := &fakeClient{
		placeFn: func(_ context.Context, req *ordercorev1.PlaceOrderRequest) (*ordercorev1.PlaceOrderResponse, error) {
			if req.MemberId != fx.memberID || len(req.Lines) != 1 || req.Lines[0].ItemId != fx.itemID || req.Lines[0].Count != 1 {
				t.Fatalf("unexpected place request: %+v", req)
			}
			return &ordercorev1.PlaceOrderResponse{OrderId: "order-1"}, nil
		},
		cancelFn: func(_ context.Context, req *ordercorev1.CancelOrderRequest) (*ordercorev1.CancelOrderResponse, error) {
			cancelled = req.OrderId
			return &ordercorev1.CancelOrderResponse{OrderId: req.OrderId, Status: ordercorev1.OrderStatusCancelled}, nil
		},
	}
	counts = &tally{}
	if err := runScenario(ok, config{mode: modePlaceCancel, timeout: time.Second}, fx, 0, newCollector(), counts); err != nil {
		t.Fatalf("runScenario failed: %v", err)
	}
	if cancelled != "order-1" || counts.placed.Load() != 1 || counts.cancelled.Load() != 1 {
		t.Fatalf("unexpected outcome: cancelled=%q placed=%d cancelled=%d", cancelled, counts.placed.Load(), counts.cancelled.Load())
	}
}

func TestSetup_RegistersFixture(t *testing.T) {
	clients := newBufClients(t, 1)
	cfg := config{timeout: 5 * time.Second, stock: 3, price: 1000, memberTag: "setup"}

	fx, err := setup(clients[0], cfg, "run-1")
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	if fx.memberID == "" || fx.itemID == "" {
		t.Fatalf("fixture ids must be filled, got %+v", fx)
	}

	stock, err := verifyStock(clients[0], cfg, fx, &tally{})
	if err != nil {
		t.Fatalf("verify stock: %v", err)
	}
	if stock.Actual != 3 || !stock.Consistent {
		t.Fatalf("expected untouched stock of 3, got %+v", stock)
	}
}

func TestSetup_EmptyResponse(t *testing.T) {
	client := &fakeClient{
		registerMemberFn: func(context.Context, *ordercorev1.RegisterMemberRequest) (*ordercorev1.RegisterMemberResponse, error) {
			return &ordercorev1.RegisterMemberResponse{}, nil
		},
		registerItemFn: func(context.Context, *ordercorev1.RegisterItemRequest) (*ordercorev1.RegisterItemResponse, error) {
			return &ordercorev1.RegisterItemResponse{Item: &ordercorev1.Item{Id: "item-1"}}, nil
		},
	}

	if _, err := setup(client, config{timeout: time.Second, memberTag: "setup"}, "run-2"); err == nil {
		t.Fatal("expected error for response without member")
	}
}

func TestRun_ContentionKeepsStockConsistent(t *testing.T) {
	clients := newBufClients(t, 4)
	cfg := config{
		total:       40,
		concurrency: 8,
		connections: 4,
		timeout:     5 * time.Second,
		mode:        modeContention,
		stock:       15,
		price:       10000,
		memberTag:   "contention",
	}

	result, err := run(cfg, clients)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	// Проигравшие все повторы сценарии уходят в failed, но остаток всё равно сходится.
	if got := result.Stock.Placed + result.Stock.Rejected + result.FailedScenarios; got != 40 {
		t.Fatalf("every scenario must be accounted for, got %d: %+v", got, result.Stock)
	}
	if result.Stock.Placed > 15 {
		t.Fatalf("sold more than in stock: %+v", result.Stock)
	}
	if !result.Stock.Consistent || result.Stock.Actual < 0 {
		t.Fatalf("stock must match placed orders, got %+v", result.Stock)
	}
	if result.FailedScenarios == 0 && result.Stock.Actual != 0 {
		t.Fatalf("stock must be drained exactly, got %+v", result.Stock)
	}
}

func TestRun_PlaceCancelRestoresStock(t *testing.T) {
	clients := newBufClients(t, 2)
	cfg := config{
		total:       20,
		concurrency: 4,
		connections: 2,
		timeout:     5 * time.Second,
		mode:        modePlaceCancel,
		stock:       20,
		price:       5000,
		memberTag:   "place-cancel",
	}

	result, err := run(cfg, clients)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !result.Stock.Consistent {
		t.Fatalf("stock must match placed and cancelled orders, got %+v", result.Stock)
	}
	if result.FailedScenarios == 0 && result.Stock.Actual != 20 {
		t.Fatalf("cancelled orders must return stock, got %+v", result.Stock)
	}

	var out bytes.Buffer
	printReport(&out, result, cfg)
	for _, want := range []string{"Load test summary", "PlaceOrder", "CancelOrder", "consistent=true"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("report must contain %q, got: %s", want, out.String())
		}
	}
}
