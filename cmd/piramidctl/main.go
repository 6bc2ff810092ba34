// Piramidctl is a thin CLI over the Piramid library: open a collection,
// bulk-load vectors from a JSONL file, run a single search, and print
// collection stats. It holds no network surface; every operation runs
// in-process against a collection on local disk.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/piramid-db/piramid/pkg/collection"
	"github.com/piramid-db/piramid/pkg/metadata"
	"github.com/piramid-db/piramid/pkg/piramid"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "insert":
		err = runInsert(os.Args[2:])
	case "search":
		err = runSearch(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "compact":
		err = runCompact(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: piramidctl <insert|search|stats|compact> [flags]")
}

// jsonlRecord is one line of the ingest file: a vector plus optional id,
// text and metadata. Metadata values arrive as plain JSON and are coerced
// into metadata.Value via jsonToValue.
type jsonlRecord struct {
	Id       string                     `json:"id"`
	Vector   []float32                  `json:"vector"`
	Text     string                     `json:"text"`
	Metadata map[string]json.RawMessage `json:"metadata"`
}

func runInsert(args []string) error {
	fs := flag.NewFlagSet("insert", flag.ExitOnError)
	dbPath := fs.String("db", "", "collection data file path (required)")
	inPath := fs.String("in", "", "JSONL file of documents to insert (required)")
	metricName := fs.String("metric", "cosine", "metric: cosine|euclidean|dot")
	indexKind := fs.String("index", "flat", "index: flat|hnsw|ivf")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" || *inPath == "" {
		return fmt.Errorf("insert: -db and -in are required")
	}

	metric, err := parseMetric(*metricName)
	if err != nil {
		return err
	}
	kind, err := parseIndexKind(*indexKind)
	if err != nil {
		return err
	}

	opts := piramid.DefaultOptions()
	opts.Metric = metric
	opts.Index.Kind = kind

	coll, err := collection.Open(*dbPath, opts, nil, nil)
	if err != nil {
		return fmt.Errorf("open collection: %w", err)
	}
	defer coll.Close()

	f, err := os.Open(*inPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	inserted := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec jsonlRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return fmt.Errorf("line %d: %w", inserted+1, err)
		}
		doc := piramid.Document{
			Vector:   rec.Vector,
			Text:     []byte(rec.Text),
			Metadata: jsonlMetadata(rec.Metadata),
		}
		if rec.Id != "" {
			id, err := piramid.ParseId(rec.Id)
			if err != nil {
				return fmt.Errorf("line %d: bad id %q: %w", inserted+1, rec.Id, err)
			}
			doc.Id = id
		}
		if _, err := coll.Upsert(doc); err != nil {
			return fmt.Errorf("line %d: %w", inserted+1, err)
		}
		inserted++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if err := coll.Checkpoint(); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	fmt.Printf("inserted %d document(s) into %s\n", inserted, *dbPath)
	return nil
}

func jsonlMetadata(raw map[string]json.RawMessage) piramid.Metadata {
	if len(raw) == 0 {
		return nil
	}
	md := make(piramid.Metadata, len(raw))
	for k, v := range raw {
		md[k] = jsonToValue(v)
	}
	return md
}

func jsonToValue(raw json.RawMessage) metadata.Value {
	var anyVal interface{}
	if err := json.Unmarshal(raw, &anyVal); err != nil {
		return metadata.Null()
	}
	switch v := anyVal.(type) {
	case string:
		return metadata.String(v)
	case bool:
		return metadata.Boolean(v)
	case float64:
		if v == float64(int64(v)) {
			return metadata.Integer(int64(v))
		}
		return metadata.Float(v)
	case []interface{}:
		vals := make([]metadata.Value, len(v))
		for i, elem := range v {
			encoded, _ := json.Marshal(elem)
			vals[i] = jsonToValue(encoded)
		}
		return metadata.Array(vals...)
	default:
		return metadata.Null()
	}
}

func runSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	dbPath := fs.String("db", "", "collection data file path (required)")
	queryStr := fs.String("query", "", "comma-separated query vector, e.g. 0.1,0.2,0.3 (required)")
	k := fs.Int("k", 10, "number of results")
	metricName := fs.String("metric", "cosine", "metric: cosine|euclidean|dot")
	ef := fs.Int("ef", 0, "HNSW search breadth override (0 = use collection default)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" || *queryStr == "" {
		return fmt.Errorf("search: -db and -query are required")
	}

	metric, err := parseMetric(*metricName)
	if err != nil {
		return err
	}
	query, err := parseVector(*queryStr)
	if err != nil {
		return err
	}

	coll, err := collection.Open(*dbPath, piramid.DefaultOptions(), nil, nil)
	if err != nil {
		return fmt.Errorf("open collection: %w", err)
	}
	defer coll.Close()

	hits, err := coll.Search(query, *k, metric, collection.SearchParams{Ef: *ef})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	for i, h := range hits {
		fmt.Printf("%2d. %s  score=%.6f  text=%q\n", i+1, h.Id, h.Score, h.Text)
	}
	return nil
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	dbPath := fs.String("db", "", "collection data file path (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" {
		return fmt.Errorf("stats: -db is required")
	}

	coll, err := collection.Open(*dbPath, piramid.DefaultOptions(), nil, nil)
	if err != nil {
		return fmt.Errorf("open collection: %w", err)
	}
	defer coll.Close()

	stats := coll.Stats()
	fmt.Printf("name:                     %s\n", stats.Name)
	fmt.Printf("vectors:                  %d\n", stats.VectorCount)
	fmt.Printf("dimensions:               %d\n", stats.Dimensions)
	fmt.Printf("index:                    %s\n", stats.IndexKind)
	fmt.Printf("wal size (bytes):         %d\n", stats.WALSizeBytes)
	fmt.Printf("seconds since checkpoint: %.1f\n", stats.SecondsSinceCheckpoint)
	return nil
}

func runCompact(args []string) error {
	fs := flag.NewFlagSet("compact", flag.ExitOnError)
	dbPath := fs.String("db", "", "collection data file path (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" {
		return fmt.Errorf("compact: -db is required")
	}

	coll, err := collection.Open(*dbPath, piramid.DefaultOptions(), nil, nil)
	if err != nil {
		return fmt.Errorf("open collection: %w", err)
	}
	defer coll.Close()

	stats, err := coll.Compact()
	if err != nil {
		return fmt.Errorf("compact: %w", err)
	}
	fmt.Printf("documents: %d -> %d, bytes reclaimed: %d\n",
		stats.DocumentsBefore, stats.DocumentsAfter, stats.BytesReclaimed)
	return nil
}

func parseMetric(s string) (piramid.Metric, error) {
	switch strings.ToLower(s) {
	case "cosine":
		return piramid.MetricCosine, nil
	case "euclidean":
		return piramid.MetricEuclidean, nil
	case "dot":
		return piramid.MetricDot, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", s)
	}
}

func parseIndexKind(s string) (piramid.IndexKind, error) {
	switch strings.ToLower(s) {
	case "flat":
		return piramid.IndexFlat, nil
	case "hnsw":
		return piramid.IndexHNSW, nil
	case "ivf":
		return piramid.IndexIVF, nil
	default:
		return 0, fmt.Errorf("unknown index kind %q", s)
	}
}

func parseVector(s string) ([]float32, error) {
	parts := strings.Split(s, ",")
	v := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("bad vector component %q: %w", p, err)
		}
		v[i] = float32(f)
	}
	return v, nil
}
