// Command contract-ingest bulk-loads contract prices from gzipped CSV files
// with rows of user_id,product_id,price. A header row is optional.
//
// A (user, product) pair that occurs more than once across the input is
// ambiguous and is not imported. Pairs that already have a contract are
// reported as conflicts, or updated with -update.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/app"
	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/contract"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
)

type row struct {
	userID    string
	productID string
	price     string
}

func (r row) key() string { return r.userID + "\x00" + r.productID }

type options struct {
	workers int
	update  bool
}

// stats counts import outcomes. Fields are updated from worker goroutines.
type stats struct {
	created    atomic.Int64
	updated    atomic.Int64
	conflicts  atomic.Int64
	rejected   atomic.Int64
	duplicates atomic.Int64
	malformed  atomic.Int64
}

func main() {
	var (
		dataDir     string
		driver      string
		databaseURL string
		opts        options
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory with *.csv.gz files, used when no files are given")
	flag.StringVar(&driver, "driver", "postgres", "storage driver: postgres or sqlite")
	flag.StringVar(&databaseURL, "database-url", "", "database URL or SQLite DSN (or DATABASE_URL env)")
	flag.IntVar(&opts.workers, "workers", 8, "concurrent contract writes")
	flag.BoolVar(&opts.update, "update", false, "overwrite existing contracts instead of reporting conflicts")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	files := flag.Args()
	if len(files) == 0 {
		matches, err := filepath.Glob(filepath.Join(dataDir, "*.csv.gz"))
		if err != nil {
			slog.Error("list input files", slog.String("error", err.Error()))
			os.Exit(1)
		}
		files = matches
	}
	if len(files) == 0 {
		slog.Error("no input files")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, files, app.DatabaseConfig{Driver: driver, URL: databaseURL}, opts); err != nil {
		slog.Error("contract ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("contract ingest completed successfully")
}

func run(ctx context.Context, files []string, db app.DatabaseConfig, opts options) error {
	sort.Strings(files)
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("scanning for duplicate pairs", slog.Int("files", len(files)))

	dups, err := findDuplicates(ctx, files)
	if err != nil {
		return errors.Wrap(err, "find duplicates")
	}
	slog.Info("duplicate pairs found", slog.Int("count", len(dups)))

	st, err := app.OpenStore(ctx, db)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer st.Close()

	svc := contract.NewService(st.Contracts, st.Products, st.Users)
	var s stats
	if err := importContracts(ctx, svc, files, dups, opts, &s); err != nil {
		return errors.Wrap(err, "import contracts")
	}

	slog.Info("import summary",
		slog.Int64("created", s.created.Load()),
		slog.Int64("updated", s.updated.Load()),
		slog.Int64("conflicts", s.conflicts.Load()),
		slog.Int64("rejected", s.rejected.Load()),
		slog.Int64("duplicate_rows", s.duplicates.Load()),
		slog.Int64("malformed_rows", s.malformed.Load()),
	)
	return nil
}

// findDuplicates returns the pairs that occur more than once across files.
//
// Pass 1 builds one bloom filter per file and notes pairs that may repeat
// inside the file. Pass 2 counts exact occurrences of every pair that may
// repeat or that another file's filter may contain; only those candidates
// are held in memory.
func findDuplicates(ctx context.Context, files []string) (map[string]struct{}, error) {
	filters := make([]*bloom.BloomFilter, len(files))
	local := make([]map[string]struct{}, len(files))

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			maybe := make(map[string]struct{})
			var n uint64
			err := streamRows(gctx, path, func(r row) {
				if filter.TestAndAddString(r.key()) {
					maybe[r.key()] = struct{}{}
				}
				n++
				if n%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.String("file", path), slog.Uint64("rows", n))
				}
			}, nil)
			if err != nil {
				return errors.Wrapf(err, "index %s", path)
			}
			filters[i], local[i] = filter, maybe
			slog.Info("pass 1 complete", slog.String("file", path), slog.Uint64("rows", n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	counts := make([]map[string]int, len(files))
	g, gctx = errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			seen := make(map[string]int)
			err := streamRows(gctx, path, func(r row) {
				k := r.key()
				if _, ok := local[i][k]; ok || inOtherFile(filters, i, k) {
					seen[k]++
				}
			}, nil)
			if err != nil {
				return errors.Wrapf(err, "count %s", path)
			}
			counts[i] = seen
			slog.Info("pass 2 complete", slog.String("file", path), slog.Int("candidates", len(seen)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := make(map[string]int)
	for _, c := range counts {
		for k, n := range c {
			total[k] += n
		}
	}
	dups := make(map[string]struct{})
	for k, n := range total {
		if n > 1 {
			dups[k] = struct{}{}
		}
	}
	return dups, nil
}

func inOtherFile(filters []*bloom.BloomFilter, self int, key string) bool {
	for j, f := range filters {
		if j != self && f.TestString(key) {
			return true
		}
	}
	return false
}

// importContracts writes every unambiguous row through the contract service.
// Domain rejections are counted and logged; storage failures abort.
func importContracts(
	ctx context.Context,
	svc *contract.Service,
	files []string,
	dups map[string]struct{},
	opts options,
	s *stats,
) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.workers, 1))

	for _, path := range files {
		err := streamRows(gctx, path, func(r row) {
			if _, ok := dups[r.key()]; ok {
				s.duplicates.Add(1)
				return
			}
			g.Go(func() error {
				return importRow(gctx, svc, r, opts, s)
			})
		}, func(record int, reason string) {
			s.malformed.Add(1)
			slog.Warn("malformed row", slog.String("file", path), slog.Int("record", record), slog.String("reason", reason))
		})
		if err != nil {
			if werr := g.Wait(); werr != nil {
				return werr
			}
			return errors.Wrapf(err, "import %s", path)
		}
	}
	return g.Wait()
}

func importRow(ctx context.Context, svc *contract.Service, r row, opts options, s *stats) error {
	price, err := decimal.NewFromString(r.price)
	if err != nil {
		s.rejected.Add(1)
		slog.Warn("rejected row", slog.String("user_id", r.userID), slog.String("product_id", r.productID), slog.String("reason", "invalid price"))
		return nil
	}
	req := contract.Request{UserID: r.userID, ProductID: r.productID, Price: price}

	_, err = svc.Create(ctx, req)
	switch {
	case err == nil:
		s.created.Add(1)
		return nil
	case errors.Is(err, contract.ErrExists) && opts.update:
		if _, err := svc.Update(ctx, req); err != nil {
			return errors.Wrapf(err, "update %s/%s", r.userID, r.productID)
		}
		s.updated.Add(1)
		return nil
	case errors.Is(err, contract.ErrExists):
		s.conflicts.Add(1)
		return nil
	}

	switch apperr.KindOf(err) {
	case apperr.KindNotFound, apperr.KindInvalidState:
		s.rejected.Add(1)
		slog.Warn("rejected row",
			slog.String("user_id", r.userID),
			slog.String("product_id", r.productID),
			slog.String("reason", err.Error()),
		)
		return nil
	default:
		return errors.Wrapf(err, "create %s/%s", r.userID, r.productID)
	}
}

// streamRows reads a gzip-compressed CSV file and calls fn for each data row.
// Rows with the wrong shape go to bad when it is set and are otherwise
// dropped silently.
func streamRows(ctx context.Context, path string, fn func(r row), bad func(record int, reason string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	cr := csv.NewReader(gz)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	for record := 1; ; record++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				if bad != nil {
					bad(record, perr.Err.Error())
				}
				continue
			}
			return errors.Wrapf(err, "read %s", path)
		}
		if record == 1 && len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "user_id") {
			continue
		}
		if len(rec) != 3 {
			if bad != nil {
				bad(record, "expected 3 fields")
			}
			continue
		}
		r := row{
			userID:    strings.TrimSpace(rec[0]),
			productID: strings.TrimSpace(rec[1]),
			price:     strings.TrimSpace(rec[2]),
		}
		if r.userID == "" || r.productID == "" {
			if bad != nil {
				bad(record, "empty id")
			}
			continue
		}
		fn(r)
	}
}
