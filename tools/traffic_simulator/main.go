package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/patrickwarner/billboardserve/internal/middleware"
	"github.com/patrickwarner/billboardserve/internal/models"
	"github.com/patrickwarner/billboardserve/internal/observability"
)

var (
	server          string
	users           int
	areaCSV         string
	totalReq        int
	conc            int
	duration        time.Duration
	rate            float64
	signedInRate    float64
	articleRate     float64
	stats           bool
	debug           bool
	label           string
	surgeInterval   time.Duration
	surgeDuration   time.Duration
	surgeMultiplier float64
	jitter          float64
)

var logger *zap.Logger

var httpClient *http.Client

var (
	userAgents = []string{
		"Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1",
		"Mozilla/5.0 (Linux; Android 12; Pixel 6 Pro) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.5735.196 Mobile Safari/537.36",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148 DEV-Native-ios",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_3_1) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Safari/605.1.15",
		"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:111.0) Gecko/20100101 Firefox/111.0",
	}
	locations = []string{"", "US", "US-NY", "US-CA", "CA-ON", "FR", "GB"}
	tags      = []string{"javascript", "go", "rust", "python", "webdev", "career", "devops", "ai"}
	roles     = []string{"trusted", "admin", "tag_moderator"}
)

const statsInterval = 5 * time.Second

var (
	countSent    uint64
	countSuccess uint64
	countEmpty   uint64
	countErrors  uint64
	countServed  uint64
)

// visit is one simulated billboard request.
type visit struct {
	Area      string
	UserAgent string
	Query     url.Values
}

// randomVisit picks a placement area and a visitor profile.
func randomVisit(r *rand.Rand, areas []string) visit {
	q := url.Values{}
	if r.Float64() < signedInRate {
		q.Set("user_id", strconv.Itoa(1+r.Intn(users)))
		q.Set("user_tags", strings.Join(sample(r, tags, 1+r.Intn(3)), ","))
		if r.Intn(10) == 0 {
			q.Set("role_names", roles[r.Intn(len(roles))])
		}
	}
	if r.Float64() < articleRate {
		q.Set("article_id", strconv.Itoa(1+r.Intn(100)))
		q.Set("article_tags", strings.Join(sample(r, tags, 1+r.Intn(4)), ","))
		if r.Intn(5) == 0 {
			q.Set("organization_id", strconv.Itoa(101+r.Intn(3)))
		}
	}
	if loc := locations[r.Intn(len(locations))]; loc != "" {
		q.Set("location", loc)
	}
	if r.Intn(5) == 0 {
		q.Set("cookies_allowed", "false")
	}
	if r.Intn(8) == 0 {
		q.Set("subforem_id", strconv.Itoa(1+r.Intn(3)))
	}
	return visit{
		Area:      areas[r.Intn(len(areas))],
		UserAgent: userAgents[r.Intn(len(userAgents))],
		Query:     q,
	}
}

// URL returns the request URL of v against base.
func (v visit) URL(base string) string {
	u := strings.TrimRight(base, "/") + "/billboards/" + url.PathEscape(v.Area)
	if enc := v.Query.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

func sample(r *rand.Rand, from []string, n int) []string {
	if n > len(from) {
		n = len(from)
	}
	out := make([]string, 0, n)
	for _, i := range r.Perm(len(from))[:n] {
		out = append(out, from[i])
	}
	return out
}

func parseAreas(csv string) []string {
	var out []string
	for _, a := range strings.Split(csv, ",") {
		if a = strings.TrimSpace(a); models.IsAllowedPlacementArea(a) {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return models.AllowedPlacementAreas
	}
	return out
}

func main() {
	flag.StringVar(&server, "server", "http://localhost:8787", "billboard server base URL")
	flag.IntVar(&users, "users", 1000, "number of unique users")
	flag.StringVar(&areaCSV, "areas", "", "comma-separated placement areas (default all)")
	flag.IntVar(&totalReq, "requests", 1000, "total requests to send")
	flag.IntVar(&conc, "concurrency", 20, "concurrent requests")
	flag.DurationVar(&duration, "duration", 0, "how long to run traffic (0 to disable)")
	flag.Float64Var(&rate, "rate", 0, "requests per second (0 for unlimited)")
	flag.Float64Var(&signedInRate, "signed-in-rate", 0.4, "probability a visitor is signed in")
	flag.Float64Var(&articleRate, "article-rate", 0.6, "probability a request is next to an article")
	flag.BoolVar(&stats, "stats", false, "print aggregated stats periodically")
	flag.BoolVar(&debug, "debug", false, "enable verbose debug logs")
	flag.StringVar(&label, "label", "", "label to identify this run")
	flag.DurationVar(&surgeInterval, "surge-interval", 0, "interval between traffic surges (0 to disable)")
	flag.DurationVar(&surgeDuration, "surge-duration", 0, "duration of each surge window")
	flag.Float64Var(&surgeMultiplier, "surge-multiplier", 2.0, "requests multiplier during surge period")
	flag.Float64Var(&jitter, "jitter", 0.0, "random jitter factor for request spacing")
	flag.Parse()

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	var err error
	logger, err = observability.InitLoggerWithLevel(level, "traffic-simulator")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	httpClient = &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			MaxConnsPerHost:       50,
			IdleConnTimeout:       90 * time.Second,
		},
	}

	if label == "" {
		label = time.Now().Format(time.RFC3339)
	}
	areas := parseAreas(areaCSV)

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	var wg sync.WaitGroup
	sem := make(chan struct{}, conc)
	done := make(chan struct{})

	var baseInterval time.Duration
	if rate > 0 {
		baseInterval = time.Duration(float64(time.Second) / rate)
	} else if duration > 0 && totalReq > 0 {
		baseInterval = duration / time.Duration(totalReq)
	}

	start := time.Now()
	next := start

	if stats {
		go func() {
			ticker := time.NewTicker(statsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					printStats()
				case <-done:
					printStats()
					return
				}
			}
		}()
	}
	for i := 0; ; i++ {
		if totalReq > 0 && i >= totalReq {
			break
		}
		if duration > 0 && time.Since(start) >= duration {
			break
		}
		if baseInterval > 0 {
			effective := baseInterval
			if surgeInterval > 0 && surgeDuration > 0 && surgeMultiplier > 0 {
				if time.Since(start)%surgeInterval < surgeDuration {
					effective = time.Duration(float64(effective) / surgeMultiplier)
				}
			}
			if jitter > 0 {
				jf := 1 + (r.Float64()*2-1)*jitter
				if jf < 0.1 {
					jf = 0.1
				}
				effective = time.Duration(float64(effective) * jf)
			}
			now := time.Now()
			if now.Before(next) {
				time.Sleep(next.Sub(now))
			}
			next = next.Add(effective)
		}

		v := randomVisit(r, areas)
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			send(v)
		}()
	}
	wg.Wait()
	close(done)
	if !stats {
		printStats()
	}
}

func send(v visit) {
	atomic.AddUint64(&countSent, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.URL(server), nil)
	if err != nil {
		atomic.AddUint64(&countErrors, 1)
		logger.Error("request build error", zap.Error(err))
		return
	}
	req.Header.Set("User-Agent", v.UserAgent)

	resp, err := httpClient.Do(req)
	if err != nil {
		atomic.AddUint64(&countErrors, 1)
		logger.Error("billboard request error", zap.Error(err))
		return
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		atomic.AddUint64(&countErrors, 1)
		logger.Error("read body error", zap.Error(err))
		return
	}
	if resp.StatusCode != http.StatusOK {
		atomic.AddUint64(&countErrors, 1)
		logger.Error("unexpected status", zap.Int("status", resp.StatusCode), zap.String("body", strings.TrimSpace(string(body))))
		return
	}

	var out struct {
		Billboards []struct {
			ID int `json:"id"`
		} `json:"billboards"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		atomic.AddUint64(&countErrors, 1)
		logger.Error("decode error", zap.Error(err))
		return
	}
	atomic.AddUint64(&countSuccess, 1)
	if len(out.Billboards) == 0 {
		atomic.AddUint64(&countEmpty, 1)
	}
	atomic.AddUint64(&countServed, uint64(len(out.Billboards)))
	logger.Debug("request",
		zap.String("request_id", resp.Header.Get(middleware.RequestIDHeader)),
		zap.String("area", v.Area),
		zap.Int("served", len(out.Billboards)))
}

func printStats() {
	sent := atomic.LoadUint64(&countSent)
	succ := atomic.LoadUint64(&countSuccess)
	empty := atomic.LoadUint64(&countEmpty)
	errs := atomic.LoadUint64(&countErrors)
	served := atomic.LoadUint64(&countServed)
	var perRequest float64
	if succ > 0 {
		perRequest = float64(served) / float64(succ)
	}
	logger.Info("stats", zap.String("run", label), zap.Uint64("sent", sent), zap.Uint64("success", succ),
		zap.Uint64("empty", empty), zap.Uint64("errors", errs), zap.Float64("billboards_per_request", perRequest))
}
