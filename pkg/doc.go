// Package pkg provides the core libraries for datashader rasterization.
//
// # Overview
//
// Datashader turns arbitrarily large tabular datasets into fixed-size
// images in three stages: aggregate records into a grid, transform the
// grid, and shade it into pixels. The pkg directory is organized around
// that flow:
//
//  1. [source] - Record input (CSV files, HTTP feeds, MongoDB, memory)
//  2. [canvas], [grid], [reduction], [aggregate] - The aggregation pass
//  3. [shade], [img] - Colormapping, spreading, and compositing
//  4. [pipeline] - Orchestration with caching ([cache]) and hooks ([observability])
//
// # Architecture
//
// The typical data flow:
//
//	CSV / HTTP / MongoDB records
//	         ↓
//	    [aggregate] package (project onto a canvas, fold into reductions)
//	         ↓
//	    [grid] package (transforms: masking, percentile filtering)
//	         ↓
//	    [shade] + [img] packages (colormap, spread, composite)
//	         ↓
//	    PNG output
//
// # Quick Start
//
// Aggregate a CSV file and shade the counts:
//
//	import (
//	    "context"
//	    "github.com/tyrasd/datashader/pkg/pipeline"
//	    "github.com/tyrasd/datashader/pkg/source"
//	)
//
//	src, _ := source.OpenCSV("trips.csv")
//	runner := pipeline.NewRunner(nil, nil, nil)
//	res, _ := runner.Execute(context.Background(), src, pipeline.Options{
//	    Source: "trips.csv",
//	    Width:  900,
//	    Height: 600,
//	})
//	os.WriteFile("trips.png", res.PNG, 0o644)
//
// # Main Packages
//
// [canvas] - Output resolution, axis ranges, and axis scales, plus the
// Projector mapping data coordinates to grid cells.
//
// [grid] - Dense aggregate arrays with typed empty-cell sentinels and
// post-aggregation transforms.
//
// [reduction] - Per-cell accumulators (count, sum, mean, variance,
// categorical counts) with associative merges for parallel aggregation.
//
// [aggregate] - The streaming pass: batches in, finished grids out.
// Points, lines, and raster resampling.
//
// [shade] - Value-to-color mapping: linear, log, and histogram
// equalization, scalar and categorical color mixing.
//
// [img] - RGBA images with spreading, dynamic spreading, and Porter-Duff
// compositing, plus PNG encoding.
//
// [pipeline] - The complete render pipeline used by the CLI and the HTTP
// service, with grid and image caching.
//
// [cache] - Cache backends: filesystem, Redis, and a no-op null cache.
//
// [source] - Record sources and the batch cursor protocol.
//
// [observability] - Pluggable hooks for pipeline, cache, and HTTP
// instrumentation.
//
// [errors] - Structured errors with machine-readable codes.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...          # All tests
//	go test ./pkg/aggregate    # Specific package
//
// [source]: https://pkg.go.dev/github.com/tyrasd/datashader/pkg/source
// [canvas]: https://pkg.go.dev/github.com/tyrasd/datashader/pkg/canvas
// [grid]: https://pkg.go.dev/github.com/tyrasd/datashader/pkg/grid
// [reduction]: https://pkg.go.dev/github.com/tyrasd/datashader/pkg/reduction
// [aggregate]: https://pkg.go.dev/github.com/tyrasd/datashader/pkg/aggregate
// [shade]: https://pkg.go.dev/github.com/tyrasd/datashader/pkg/shade
// [img]: https://pkg.go.dev/github.com/tyrasd/datashader/pkg/img
// [pipeline]: https://pkg.go.dev/github.com/tyrasd/datashader/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/tyrasd/datashader/pkg/cache
// [observability]: https://pkg.go.dev/github.com/tyrasd/datashader/pkg/observability
// [errors]: https://pkg.go.dev/github.com/tyrasd/datashader/pkg/errors
package pkg
