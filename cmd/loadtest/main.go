package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	ordercorev1 "github.com/vladislavdragonenkov/ordercore/api/ordercore/v1"
)

type loadMode string

const (
	modePlace       loadMode = "place"
	modePlaceCancel loadMode = "place-cancel"
	modeContention  loadMode = "contention"
)

type config struct {
	addr        string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	connections int
	timeout     time.Duration
	mode        loadMode
	cancelRate  int
	stock       int
	price       int64
	memberTag   string
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type stockReport struct {
	ItemID     string `json:"item_id"`
	Initial    int    `json:"initial"`
	Placed     int64  `json:"placed"`
	Cancelled  int64  `json:"cancelled"`
	Rejected   int64  `json:"rejected"`
	Expected   int64  `json:"expected"`
	Actual     int64  `json:"actual"`
	Consistent bool   `json:"consistent"`
}

type report struct {
	StartedAt         time.Time               `json:"started_at"`
	DurationSeconds   float64                 `json:"duration_seconds"`
	TotalScenarios    int64                   `json:"total_scenarios"`
	SuccessScenarios  int64                   `json:"success_scenarios"`
	FailedScenarios   int64                   `json:"failed_scenarios"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Methods           map[string]methodReport `json:"methods"`
	Stock             stockReport             `json:"stock"`
}

type methodStats struct {
	calls     int64
	success   int64
	failed    int64
	codes     map[string]int64
	latencies []float64
}

type collector struct {
	mu      sync.Mutex
	methods map[string]*methodStats
}

func newCollector() *collector {
	return &collector{
		methods: make(map[string]*methodStats),
	}
}

func (c *collector) record(method string, latency time.Duration, code codes.Code) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[method]
	if !ok {
		stats = &methodStats{
			codes: make(map[string]int64),
		}
		c.methods[method] = stats
	}

	stats.calls++
	if code == codes.OK {
		stats.success++
	} else {
		stats.failed++
	}
	stats.codes[code.String()]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Methods:         make(map[string]methodReport, len(c.methods)),
	}

	scenarioStats := c.methods["scenario"]
	if scenarioStats != nil {
		result.TotalScenarios = scenarioStats.calls
		result.SuccessScenarios = scenarioStats.success
		result.FailedScenarios = scenarioStats.failed
		result.ErrorRate = ratio(scenarioStats.failed, scenarioStats.calls)
		result.ScenarioLatencyMs = buildLatencySummary(scenarioStats.latencies)
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}

	for name, stats := range c.methods {
		codesCopy := make(map[string]int64, len(stats.codes))
		for code, count := range stats.codes {
			codesCopy[code] = count
		}
		result.Methods[name] = methodReport{
			Calls:     stats.calls,
			Success:   stats.success,
			Failed:    stats.failed,
			ErrorRate: ratio(stats.failed, stats.calls),
			Codes:     codesCopy,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
	}

	return result
}

func parseConfig(args []string) (config, error) {
	var cfg config
	var modeValue string

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC target address")
	fs.IntVar(&cfg.total, "total", 400, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	fs.DurationVar(&cfg.duration, "duration", 0, "optional time-based run duration (e.g. 10m, 15m)")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	fs.IntVar(&cfg.connections, "connections", 20, "number of gRPC client connections")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-RPC timeout")
	fs.StringVar(&modeValue, "mode", string(modePlace), "load mode: place | place-cancel | contention")
	fs.IntVar(&cfg.cancelRate, "cancel-rate", 0, "cancel probability in percent for place mode (0..100)")
	fs.IntVar(&cfg.stock, "stock", 0, "initial stock of the load item (0 = total scenarios)")
	fs.Int64Var(&cfg.price, "price", 10000, "load item price")
	fs.StringVar(&cfg.memberTag, "member-tag", "load", "member name prefix")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	if cfg.duration < 0 {
		return cfg, errors.New("duration must be >= 0")
	}
	if cfg.duration == 0 && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when duration is not set")
	}
	if cfg.duration > 0 && cfg.totalSet && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	}
	if cfg.concurrency <= 0 {
		return cfg, errors.New("concurrency must be > 0")
	}
	if cfg.connections <= 0 {
		return cfg, errors.New("connections must be > 0")
	}
	if cfg.timeout <= 0 {
		return cfg, errors.New("timeout must be > 0")
	}
	if cfg.price <= 0 {
		return cfg, errors.New("price must be > 0")
	}
	if cfg.stock < 0 {
		return cfg, errors.New("stock must be >= 0")
	}
	if cfg.cancelRate < 0 || cfg.cancelRate > 100 {
		return cfg, errors.New("cancel-rate must be between 0 and 100")
	}
	if strings.TrimSpace(cfg.memberTag) == "" {
		return cfg, errors.New("member-tag is required")
	}
	if cfg.stock == 0 {
		cfg.stock = cfg.total
		// В contention-режиме склада заведомо не хватает на всех.
		if cfg.mode == modeContention {
			cfg.stock = max(cfg.total/2, 1)
		}
	}

	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch loadMode(strings.TrimSpace(value)) {
	case modePlace:
		return modePlace, nil
	case modePlaceCancel:
		return modePlaceCancel, nil
	case modeContention:
		return modeContention, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	conns := make([]*grpc.ClientConn, 0, cfg.connections)
	clients := make([]ordercorev1.OrderCoreServiceClient, 0, cfg.connections)
	for i := 0; i < cfg.connections; i++ {
		conn, dialErr := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if dialErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to create grpc client connection: %v\n", dialErr)
			os.Exit(1)
		}
		conns = append(conns, conn)
		clients = append(clients, ordercorev1.NewOrderCoreServiceClient(conn))
	}
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	result, err := run(cfg, clients)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load test failed: %v\n", err)
		os.Exit(1)
	}

	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.FailedScenarios > 0 || !result.Stock.Consistent {
		os.Exit(1)
	}
}

// fixture: участник и товар, общие для всех сценариев прогона.
type fixture struct {
	memberID string
	itemID   string
}

// tally считает исходы сценариев для сверки остатка.
type tally struct {
	placed    atomic.Int64
	cancelled atomic.Int64
	rejected  atomic.Int64
}

func run(cfg config, clients []ordercorev1.OrderCoreServiceClient) (report, error) {
	if len(clients) == 0 {
		return report{}, errors.New("no clients")
	}

	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())
	fx, err := setup(clients[0], cfg, runID)
	if err != nil {
		return report{}, err
	}

	col := newCollector()
	counts := &tally{}
	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup

	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		go func(cli ordercorev1.OrderCoreServiceClient) {
			defer wg.Done()
			for id := range jobs {
				_ = runScenario(cli, cfg, fx, id, col, counts)
			}
		}(clients[workerID%len(clients)])
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	result := col.buildReport(startedAt, time.Since(startedAt))
	stock, err := verifyStock(clients[0], cfg, fx, counts)
	if err != nil {
		return result, err
	}
	result.Stock = stock
	return result, nil
}

func setup(client ordercorev1.OrderCoreServiceClient, cfg config, runID string) (fixture, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	memberResp, err := client.RegisterMember(ctx, &ordercorev1.RegisterMemberRequest{
		Name:    fmt.Sprintf("%s-%s", cfg.memberTag, runID),
		Address: &ordercorev1.Address{City: "Seoul", Street: "Load-ro", Zipcode: "00000"},
	})
	if err != nil {
		return fixture{}, fmt.Errorf("register member: %w", err)
	}

	itemResp, err := client.RegisterItem(ctx, &ordercorev1.RegisterItemRequest{
		Name:          fmt.Sprintf("load-book-%s", runID),
		Price:         cfg.price,
		StockQuantity: int32(cfg.stock),
		Book:          &ordercorev1.Book{Author: cfg.memberTag, Isbn: runID},
	})
	if err != nil {
		return fixture{}, fmt.Errorf("register item: %w", err)
	}

	member, item := memberResp.GetMember(), itemResp.GetItem()
	if member == nil || item == nil {
		return fixture{}, errors.New("register response without entity")
	}
	return fixture{memberID: member.Id, itemID: item.Id}, nil
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}

		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

// runScenario оформляет заказ на одну единицу товара и при необходимости отменяет его.
// Отказ по остатку в contention-режиме считается ожидаемым исходом.
func runScenario(
	client ordercorev1.OrderCoreServiceClient,
	cfg config,
	fx fixture,
	index int,
	col *collector,
	counts *tally,
) error {
	scenarioStart := time.Now()
	scenarioCode := codes.OK
	defer func() {
		col.record("scenario", time.Since(scenarioStart), scenarioCode)
	}()

	orderID, err := callPlaceOrder(client, cfg.timeout, fx, col)
	if err != nil {
		if cfg.mode == modeContention && grpcCode(err) == codes.FailedPrecondition {
			counts.rejected.Add(1)
			return nil
		}
		scenarioCode = grpcCode(err)
		return err
	}
	if orderID == "" {
		scenarioCode = codes.Internal
		return errors.New("place response returned empty order id")
	}
	counts.placed.Add(1)

	if !shouldCancel(cfg, index) {
		return nil
	}
	if err := callCancelOrder(client, cfg.timeout, orderID, col); err != nil {
		scenarioCode = grpcCode(err)
		return err
	}
	counts.cancelled.Add(1)
	return nil
}

func shouldCancel(cfg config, index int) bool {
	switch cfg.mode {
	case modePlaceCancel:
		return true
	case modePlace:
		return shouldCancelScenario(index, cfg.cancelRate)
	default:
		return false
	}
}

func callPlaceOrder(
	client ordercorev1.OrderCoreServiceClient,
	timeout time.Duration,
	fx fixture,
	col *collector,
) (string, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := client.PlaceOrder(ctx, &ordercorev1.PlaceOrderRequest{
		MemberId: fx.memberID,
		Lines:    []*ordercorev1.OrderLineRequest{{ItemId: fx.itemID, Count: 1}},
	})
	col.record("PlaceOrder", time.Since(start), grpcCode(err))
	if err != nil {
		return "", err
	}
	return resp.OrderId, nil
}

func callCancelOrder(
	client ordercorev1.OrderCoreServiceClient,
	timeout time.Duration,
	orderID string,
	col *collector,
) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, err := client.CancelOrder(ctx, &ordercorev1.CancelOrderRequest{OrderId: orderID})
	col.record("CancelOrder", time.Since(start), grpcCode(err))
	return err
}

// verifyStock сверяет итоговый остаток с числом успешных оформлений и отмен.
func verifyStock(client ordercorev1.OrderCoreServiceClient, cfg config, fx fixture, counts *tally) (stockReport, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	resp, err := client.ListItems(ctx, &ordercorev1.ListItemsRequest{})
	if err != nil {
		return stockReport{}, fmt.Errorf("list items: %w", err)
	}

	result := stockReport{
		ItemID:    fx.itemID,
		Initial:   cfg.stock,
		Placed:    counts.placed.Load(),
		Cancelled: counts.cancelled.Load(),
		Rejected:  counts.rejected.Load(),
		Actual:    -1,
	}
	result.Expected = int64(cfg.stock) - result.Placed + result.Cancelled
	for _, item := range resp.Items {
		if item.Id == fx.itemID {
			result.Actual = int64(item.StockQuantity)
		}
	}
	if result.Actual < 0 {
		return result, fmt.Errorf("item %s not found", fx.itemID)
	}
	result.Consistent = result.Actual == result.Expected
	return result, nil
}

func grpcCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	return status.Code(err)
}

func shouldCancelScenario(index, cancelRate int) bool {
	if cancelRate <= 0 {
		return false
	}
	if cancelRate >= 100 {
		return true
	}
	return index%100 < cancelRate
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(w io.Writer, result report, cfg config) {
	_, _ = fmt.Fprintln(w, "Load test summary")
	_, _ = fmt.Fprintf(w, "mode=%s run=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode,
		runTarget(cfg),
		result.TotalScenarios,
		result.SuccessScenarios,
		result.FailedScenarios,
		result.ErrorRate,
	)
	_, _ = fmt.Fprintf(w, "duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	_, _ = fmt.Fprintf(w, "scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.ScenarioLatencyMs.Min,
		result.ScenarioLatencyMs.Avg,
		result.ScenarioLatencyMs.P50,
		result.ScenarioLatencyMs.P95,
		result.ScenarioLatencyMs.P99,
		result.ScenarioLatencyMs.Max,
	)
	_, _ = fmt.Fprintf(w, "stock: initial=%d placed=%d cancelled=%d rejected=%d expected=%d actual=%d consistent=%t\n",
		result.Stock.Initial,
		result.Stock.Placed,
		result.Stock.Cancelled,
		result.Stock.Rejected,
		result.Stock.Expected,
		result.Stock.Actual,
		result.Stock.Consistent,
	)

	methodNames := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		if name == "scenario" {
			continue
		}
		methodNames = append(methodNames, name)
	}
	sort.Strings(methodNames)
	for _, name := range methodNames {
		stats := result.Methods[name]
		_, _ = fmt.Fprintf(w,
			"%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name,
			stats.Calls,
			stats.Success,
			stats.Failed,
			stats.ErrorRate,
			stats.LatencyMs.P95,
		)
	}
}

func runTarget(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count:%d", cfg.total)
	}
	if cfg.totalSet {
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration:%s", cfg.duration)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
