// Package lineage computes column-level lineage for a resolved logical plan.
//
// Given the plan of an executed statement it determines the tables read,
// the tables written and, for every output column, the source columns it
// was derived from.
//
// # Algorithm
//
// The extractor walks the plan top-down carrying a request map: for each
// attribute an ancestor needs, the attributes it currently depends on. Each
// operator rewrites the request through its own expressions and hands it to
// its inputs; leaves answer by qualifying the attributes they own with their
// table name. Results are merged bottom-up.
//
// # Basic Usage
//
//	analyzer := lineage.NewAnalyzer(lineage.Options{
//	    SkipParsingPermanentViews: false,
//	    Logger:                    logger,
//	})
//
//	result, ok := analyzer.TryAnalyze(statementID, root)
//	if !ok {
//	    return // failure already logged
//	}
//	for _, col := range result.ColumnLineage {
//	    fmt.Printf("%s <- %v\n", col.Column, col.OriginalColumns)
//	}
package lineage
