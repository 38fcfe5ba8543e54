package pipeline

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/OFFIS-RIT/suppkb/internal/util"
	"github.com/OFFIS-RIT/suppkb/pkg/papers/httpapi"
	"github.com/OFFIS-RIT/suppkb/pkg/papers/pgxstore"
)

// ConfigFromEnv assembles a run configuration from the environment, including
// the paper metadata resolver (PAPERS_RESOLVER=pgx|http). The returned cleanup
// releases resolver resources and must be called after the run.
func ConfigFromEnv(ctx context.Context) (Config, func(), error) {
	config := Config{
		ClusterFile:        util.GetEnvString("CLUSTER_FILE", "data/cui_clusters.json"),
		BlockListFile:      util.GetEnvString("BLOCKLIST_FILE", "data/blacklist.txt"),
		DataDir:            util.GetEnvString("DATA_DIR", "data"),
		ClassificationFile: util.GetEnv("CLASSIFICATION_FILE"),
		OutputFile:         util.GetEnvString("OUTPUT_FILE", "output/suppkb.tar.gz"),
		Parallel:           util.GetEnvInt("PARALLEL", 4),
		BatchSize:          util.GetEnvInt("PAPERS_BATCH_SIZE", 1000),
		MaxRetries:         util.GetEnvInt("MAX_RETRIES", 3),
	}

	cleanup := func() {}

	switch util.GetEnvString("PAPERS_RESOLVER", "http") {
	case "pgx":
		pool, err := pgxpool.New(ctx, util.GetEnv("DATABASE_URL"))
		if err != nil {
			return Config{}, nil, fmt.Errorf("unable to connect to corpus database: %w", err)
		}
		config.Resolver = pgxstore.NewStore(pool)
		cleanup = pool.Close
	case "http":
		config.Resolver = httpapi.NewClient(httpapi.NewClientParams{
			BaseURL: util.GetEnv("PAPERS_API_URL"),
			APIKey:  util.GetEnv("PAPERS_API_KEY"),
		})
	default:
		return Config{}, nil, fmt.Errorf("unknown PAPERS_RESOLVER %q", util.GetEnv("PAPERS_RESOLVER"))
	}

	return config, cleanup, nil
}
