package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/billboardserve/internal/config"
	"github.com/patrickwarner/billboardserve/internal/db"
	"github.com/patrickwarner/billboardserve/internal/logic"
	"github.com/patrickwarner/billboardserve/internal/models"
	"github.com/patrickwarner/billboardserve/internal/observability"
)

var (
	billboardCount = flag.Int("billboards", 60, "number of billboards")
	segmentCount   = flag.Int("segments", 3, "number of audience segments")
	usersPerSeg    = flag.Int("users", 50, "users per audience segment")
	enableLocation = flag.Bool("location-targeting", true, "enable the location targeting flag in Redis")
	seed           = flag.Int64("seed", time.Now().UnixNano(), "rng seed")
	skipReload     = flag.Bool("skip-reload", false, "skip automatic reload after data insertion")
)

var (
	fakeTags      = []string{"javascript", "go", "rust", "python", "webdev", "career", "devops", "ai", "beginners", "security"}
	fakeLocations = []string{"US", "US-NY", "US-CA", "CA", "CA-ON", "CA-QC", "US-TX"}
	fakeRoles     = []string{"trusted", "admin", "super_moderator", "tag_moderator"}
	fakeOrgIDs    = []int{101, 102, 103}
	fakeSubforems = []int{1, 2, 3}

	// home_hero is reserved for in-house billboards and is only assigned explicitly.
	randomAreas = slices.DeleteFunc(slices.Clone(models.AllowedPlacementAreas), func(a string) bool {
		return a == models.AreaHomeHero
	})
)

func main() {
	flag.Parse()

	logger, err := observability.InitLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()
	ctx := context.Background()
	pg, err := db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect postgres: %v\n", err)
		os.Exit(1)
	}
	defer pg.Close()

	r := rand.New(rand.NewSource(*seed))

	for seg := 1; seg <= *segmentCount; seg++ {
		for _, user := range segmentUsers(r, *usersPerSeg) {
			if err := pg.AddSegmentMember(ctx, seg, user); err != nil {
				logger.Fatal("insert segment member", zap.Int("segment_id", seg), zap.Error(err))
			}
		}
	}

	inserted := 0
	for i := 0; i < *billboardCount; i++ {
		b := randomBillboard(r, i, *segmentCount)
		if err := b.Validate(); err != nil {
			logger.Warn("skipping invalid billboard", zap.Error(err))
			continue
		}
		if err := pg.InsertBillboard(ctx, &b); err != nil {
			logger.Fatal("insert billboard", zap.Error(err))
		}
		inserted++
	}
	fmt.Printf("fake data inserted: %d billboards, %d segments\n", inserted, *segmentCount)

	if *enableLocation && cfg.RedisEnabled {
		rs, err := db.InitRedis(cfg.RedisAddr)
		if err != nil {
			logger.Error("connect redis", zap.Error(err))
		} else {
			if err := rs.SetFeatureFlag(ctx, logic.FlagLocationTargeting, true); err != nil {
				logger.Error("enable location targeting", zap.Error(err))
			}
			rs.Close()
		}
	}

	if !*skipReload {
		if err := callReloadEndpoint(&cfg); err != nil {
			logger.Error("reload endpoint failed", zap.Error(err))
			fmt.Fprintf(os.Stderr, "Warning: failed to reload server data: %v\n", err)
		} else {
			fmt.Println("server data reloaded")
		}
	}
}

// randomBillboard builds a live billboard with a mix of targeting rules.
// Every tenth billboard is a home hero and about one in eight is left unpublished.
func randomBillboard(r *rand.Rand, i, segments int) models.Billboard {
	b := models.Billboard{
		Name:           fmt.Sprintf("Billboard %d", i+1),
		Approved:       r.Intn(20) != 0,
		Published:      r.Intn(8) != 0,
		PlacementArea:  randomAreas[r.Intn(len(randomAreas))],
		DisplayTo:      []models.DisplayTo{models.DisplayToAll, models.DisplayToLoggedIn, models.DisplayToLoggedOut}[r.Intn(3)],
		TypeOf:         models.TypeInHouse,
		BrowserContext: []models.BrowserContext{models.BrowserAllBrowsers, models.BrowserAllBrowsers, models.BrowserMobileWeb, models.BrowserDesktop, models.BrowserMobileInApp}[r.Intn(5)],
		ProcessedHTML:  fmt.Sprintf("<div class=\"billboard\">Billboard %d</div>", i+1),
	}
	b.RequiresCookies = r.Intn(6) == 0
	if i%10 == 0 {
		b.PlacementArea = models.AreaHomeHero
		return b
	}

	switch r.Intn(3) {
	case 1:
		b.TypeOf = models.TypeExternal
	case 2:
		b.TypeOf = models.TypeCommunity
		b.OrganizationID = models.IntPtr(fakeOrgIDs[r.Intn(len(fakeOrgIDs))])
	}
	if r.Intn(2) == 0 {
		b.Tags = pick(r, fakeTags, 1+r.Intn(3))
	}
	if r.Intn(4) == 0 {
		for _, code := range pick(r, fakeLocations, 1+r.Intn(2)) {
			if g, err := models.ParseGeolocation(code); err == nil {
				b.TargetGeolocations = append(b.TargetGeolocations, g)
			}
		}
	}
	if segments > 0 && r.Intn(6) == 0 {
		b.AudienceSegmentID = models.IntPtr(1 + r.Intn(segments))
	}
	if r.Intn(8) == 0 {
		b.IncludeSubforemIDs = []int{fakeSubforems[r.Intn(len(fakeSubforems))]}
	}
	if r.Intn(10) == 0 {
		b.TargetRoleNames = pick(r, fakeRoles, 1)
	}
	if r.Intn(10) == 0 {
		b.ExcludeArticleIDs = []int{1 + r.Intn(100)}
	}
	return b
}

func segmentUsers(r *rand.Rand, n int) []int {
	out := make([]int, 0, n)
	seen := make(map[int]bool, n)
	for len(out) < n {
		u := 1 + r.Intn(1000)
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// pick returns n distinct random elements of from.
func pick(r *rand.Rand, from []string, n int) []string {
	if n > len(from) {
		n = len(from)
	}
	idx := r.Perm(len(from))[:n]
	out := make([]string, 0, n)
	for _, i := range idx {
		out = append(out, from[i])
	}
	return out
}

func callReloadEndpoint(cfg *config.Config) error {
	reloadURL := fmt.Sprintf("http://localhost:%s/reload", cfg.Port)
	req, err := http.NewRequest("POST", reloadURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return nil
}
