package piramid

import "math"

// HNSWOptions configures the HNSW index variant (spec §4.6.2).
type HNSWOptions struct {
	M              int
	MMax           int
	EfConstruction int
	EfSearch       int
	Ml             float64
}

// IVFOptions configures the IVF index variant (spec §4.6.3).
type IVFOptions struct {
	NumClusters   int
	NumProbes     int
	MaxIterations int
}

// IndexOptions selects and configures the ANN index backing a collection.
type IndexOptions struct {
	Kind IndexKind
	HNSW HNSWOptions
	IVF  IVFOptions
}

// ExecutionOptions selects the distance-kernel implementation.
type ExecutionOptions struct {
	Mode ExecutionMode
}

// WALOptions configures write-ahead logging.
type WALOptions struct {
	Enabled                bool
	CheckpointFrequency    int
	CheckpointIntervalSecs int64
	MaxLogSize             int64
	SyncOnWrite            bool
}

// MemoryOptions configures the mmap file manager.
type MemoryOptions struct {
	UseMmap         bool
	InitialMmapSize int64
}

// QuantizationOptions configures vector on-disk encoding.
type QuantizationOptions struct {
	Level    QuantizationLevel
	DiskOnly bool
}

// LimitOptions bounds collection growth; zero means unlimited.
type LimitOptions struct {
	MaxVectors     int64
	MaxBytes       int64
	MaxVectorBytes int64
}

// SearchOptions configures default search behavior.
type SearchOptions struct {
	FilterOverfetch int
}

// DiskGuardOptions configures the advisory disk-space guard (spec §5).
type DiskGuardOptions struct {
	MinFreeBytes       int64
	ReadOnlyOnLowSpace bool
}

// CacheGuardOptions configures the cache-budget guard checked by
// Collection.Stats() (spec §5).
type CacheGuardOptions struct {
	MaxBytes int64
}

// Options is the full configuration surface of a collection (spec §6).
type Options struct {
	Metric       Metric
	Index        IndexOptions
	Execution    ExecutionOptions
	WAL          WALOptions
	Memory       MemoryOptions
	Quantization QuantizationOptions
	Limits       LimitOptions
	Search       SearchOptions
	DiskGuard    DiskGuardOptions
	CacheGuard   CacheGuardOptions
}

// DefaultOptions returns the configuration a collection is opened with
// when the caller supplies none.
func DefaultOptions() Options {
	return Options{
		Metric: MetricCosine,
		Index: IndexOptions{
			Kind: IndexAuto,
			HNSW: HNSWOptions{
				M:              16,
				MMax:           32,
				EfConstruction: 200,
				EfSearch:       64,
				Ml:             1 / math.Log(16),
			},
			IVF: IVFOptions{
				NumClusters:   0, // 0 means auto ≈ sqrt(N)
				NumProbes:     8,
				MaxIterations: 25,
			},
		},
		Execution: ExecutionOptions{Mode: ExecutionAuto},
		WAL: WALOptions{
			Enabled:             true,
			CheckpointFrequency: 1000,
			MaxLogSize:          64 << 20,
			SyncOnWrite:         false,
		},
		Memory: MemoryOptions{
			UseMmap:         true,
			InitialMmapSize: 1 << 20,
		},
		Quantization: QuantizationOptions{Level: QuantizationInt8},
		Search:       SearchOptions{FilterOverfetch: 4},
		DiskGuard: DiskGuardOptions{
			MinFreeBytes:       64 << 20,
			ReadOnlyOnLowSpace: true,
		},
		CacheGuard: CacheGuardOptions{MaxBytes: 512 << 20},
	}
}

// Validate rejects contradictory or out-of-range configuration, returning
// a *ConfigError naming the offending field.
func (o Options) Validate() error {
	if o.Index.HNSW.M <= 0 {
		return NewConfigError("index.hnsw.m", "must be > 0")
	}
	if o.Index.HNSW.MMax <= 0 {
		return NewConfigError("index.hnsw.m_max", "must be > 0")
	}
	if o.Index.HNSW.EfConstruction <= 0 {
		return NewConfigError("index.hnsw.ef_construction", "must be > 0")
	}
	if o.Index.HNSW.EfSearch <= 0 {
		return NewConfigError("index.hnsw.ef_search", "must be > 0")
	}
	if o.Index.HNSW.Ml <= 0 {
		return NewConfigError("index.hnsw.ml", "must be > 0")
	}
	if o.Index.IVF.NumClusters < 0 {
		return NewConfigError("index.ivf.num_clusters", "must be >= 0 (0 = auto)")
	}
	if o.Index.IVF.NumProbes <= 0 {
		return NewConfigError("index.ivf.num_probes", "must be > 0")
	}
	if o.Index.IVF.MaxIterations <= 0 {
		return NewConfigError("index.ivf.max_iterations", "must be > 0")
	}
	if o.WAL.Enabled && o.WAL.CheckpointFrequency <= 0 {
		return NewConfigError("wal.checkpoint_frequency", "must be > 0 when wal is enabled")
	}
	if o.WAL.MaxLogSize <= 0 {
		return NewConfigError("wal.max_log_size", "must be > 0")
	}
	if o.Memory.InitialMmapSize <= 0 {
		return NewConfigError("memory.initial_mmap_size", "must be > 0")
	}
	if o.Search.FilterOverfetch < 1 {
		return NewConfigError("search.filter_overfetch", "must be >= 1")
	}
	if o.Limits.MaxVectors < 0 || o.Limits.MaxBytes < 0 || o.Limits.MaxVectorBytes < 0 {
		return NewConfigError("limits", "must be >= 0 (0 = unlimited)")
	}
	return nil
}
