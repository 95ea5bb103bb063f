// Command pmscan-loadtest drives concurrent login, refresh, authenticate and
// logout cycles against an engine backed by Redis or miniredis.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/MrEthical07/pmscanauth"
	"github.com/MrEthical07/pmscanauth/metrics/export/internaldefs"
	"github.com/MrEthical07/pmscanauth/password"
)

const loadPassword = "Load#Test123"

type userState struct {
	mu      sync.Mutex
	access  string
	refresh string
}

func main() {
	var (
		users       = pflag.Int("users", 1000, "number of accounts to seed")
		concurrency = pflag.Int("concurrency", 64, "number of concurrent workers")
		ops         = pflag.Int("ops", 20000, "operations per phase")
		redisAddr   = pflag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = pflag.String("prefix", "loadtest", "redis key prefix")
		rotate      = pflag.Bool("rotate", false, "rotate refresh tokens on use")
	)
	pflag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var cleanup func()
	var client redis.UniversalClient
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	engine, err := buildEngine(client, *users, *prefix, *rotate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	states := make([]userState, *users)

	loginStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		idx := r.Intn(len(states))
		res, err := engine.Login(ctx, emailFor(idx), loadPassword)
		if err != nil {
			return err
		}
		s := &states[idx]
		s.mu.Lock()
		s.access, s.refresh = res.AccessToken, res.RefreshToken
		s.mu.Unlock()
		return nil
	})

	authStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		s := &states[r.Intn(len(states))]
		s.mu.Lock()
		token := s.access
		s.mu.Unlock()
		if token == "" {
			return pmscanauth.ErrUnauthorized
		}
		_, err := engine.Authenticate(ctx, token)
		return err
	})

	refreshStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		s := &states[r.Intn(len(states))]
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.refresh == "" {
			return pmscanauth.ErrMissingRefreshToken
		}
		res, err := engine.Refresh(ctx, s.refresh)
		if err != nil {
			return err
		}
		s.access = res.AccessToken
		if res.RefreshToken != "" {
			s.refresh = res.RefreshToken
		}
		return nil
	})

	logoutStats := runPhase(len(states), *concurrency, func(_ *rand.Rand, i int) error {
		s := &states[i]
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.refresh == "" {
			return nil
		}
		err := engine.Logout(ctx, s.refresh)
		s.refresh = ""
		return err
	})

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("authenticate", authStats)
	printStats("refresh", refreshStats)
	printStats("logout", logoutStats)
	printSnapshot(engine.MetricsSnapshot())
}

func buildEngine(client redis.UniversalClient, users int, prefix string, rotate bool) (*pmscanauth.Engine, error) {
	hasher, err := password.NewHasher(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		return nil, err
	}
	digest, err := hasher.Hash(loadPassword)
	if err != nil {
		return nil, err
	}

	fmt.Printf("seeding %d users...\n", users)
	dir := newSeededDirectory(users, digest)

	cfg := pmscanauth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("pmscan-loadtest-secret-0123456789abcdef")
	cfg.Security.RotateRefreshOnUse = rotate
	cfg.Store.RedisPrefix = prefix
	cfg.Metrics.EnableLatencyHistograms = true

	return pmscanauth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserDirectory(dir).
		WithPasswordHasher(hasher).
		WithMailer(nopMailer{}).
		Build()
}

func emailFor(i int) string {
	return fmt.Sprintf("user-%d@loadtest.pmscan", i)
}

// seededDirectory is a read-mostly in-memory directory.
type seededDirectory struct {
	mu      sync.RWMutex
	byEmail map[string]pmscanauth.UserRecord
	byID    map[int64]pmscanauth.UserRecord
}

func newSeededDirectory(n int, digest string) *seededDirectory {
	d := &seededDirectory{
		byEmail: make(map[string]pmscanauth.UserRecord, n),
		byID:    make(map[int64]pmscanauth.UserRecord, n),
	}
	for i := 0; i < n; i++ {
		u := pmscanauth.UserRecord{ID: int64(i + 1), Email: emailFor(i), PasswordDigest: digest}
		d.byEmail[u.Email] = u
		d.byID[u.ID] = u
	}
	return d
}

func (d *seededDirectory) FindByEmail(_ context.Context, email string) (pmscanauth.UserRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byEmail[email]
	if !ok {
		return pmscanauth.UserRecord{}, pmscanauth.ErrUserNotFound
	}
	return u, nil
}

func (d *seededDirectory) FindByID(_ context.Context, id int64) (pmscanauth.UserRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byID[id]
	if !ok {
		return pmscanauth.UserRecord{}, pmscanauth.ErrUserNotFound
	}
	return u, nil
}

func (d *seededDirectory) UpdateCredential(_ context.Context, id int64, digest string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.byID[id]
	if !ok {
		return pmscanauth.ErrUserNotFound
	}
	u.PasswordDigest = digest
	d.byID[id] = u
	d.byEmail[u.Email] = u
	return nil
}

type nopMailer struct{}

func (nopMailer) Send(context.Context, string, string, string, string) error { return nil }

func runPhase(ops, concurrency int, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func printSnapshot(snap pmscanauth.MetricsSnapshot) {
	fmt.Println("---- engine counters ----")
	for _, def := range internaldefs.CounterDefs {
		if v := snap.Counters[def.ID]; v > 0 {
			fmt.Printf("%-48s %d\n", def.Name, v)
		}
	}
	if buckets, ok := snap.Histograms[pmscanauth.MetricAuthenticateLatency]; ok {
		fmt.Printf("authenticate latency buckets: %v\n", buckets)
	}
}
