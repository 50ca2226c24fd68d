package cmd

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanrdf/internal/document"
	amerrors "github.com/Aman-CERP/amanrdf/internal/errors"
	"github.com/Aman-CERP/amanrdf/internal/output"
	"github.com/Aman-CERP/amanrdf/internal/store"
)

func newSearchCmd() *cobra.Command {
	var (
		indexName  string
		field      string
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Query an index",
		Long: `Run a keyword query over the searchable fields of an index.

With --field the query is matched exactly against that keyword field
instead, the way the extended pass looks up property values.`,
		Example: `  # Search the base index
  amanrdf search "Ulysses"

  # Look up the titles of one subject
  amanrdf search --index title --field resource_terms example.org/book/1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if indexName == "" {
				indexName = cfg.Indexing.Base.Name
			}

			st, err := openStore(cfg, nil)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			ctx := cmd.Context()
			ok, err := st.Exists(ctx, indexName)
			if err != nil {
				return amerrors.BackendError("cannot reach backend", err)
			}
			if !ok {
				return amerrors.IndexMissingError(indexName)
			}

			var hits []store.Hit
			if field != "" {
				docs, err := st.Lookup(ctx, indexName, field, args[0], limit)
				if err != nil {
					return amerrors.BackendError("lookup failed", err)
				}
				for _, d := range docs {
					hits = append(hits, store.Hit{Document: d})
				}
			} else {
				hits, err = st.Search(ctx, indexName, args[0], limit)
				if err != nil {
					return amerrors.BackendError("search failed", err)
				}
			}

			if jsonOutput {
				if hits == nil {
					hits = []store.Hit{}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(store.SearchResponse{Hits: hits})
			}
			printHits(output.New(cmd.OutOrStdout()), indexName, hits)
			return nil
		},
	}

	cmd.Flags().StringVarP(&indexName, "index", "i", "", "Index to query (default: the base index)")
	cmd.Flags().StringVarP(&field, "field", "f", "", "Match this keyword field exactly")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum results")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func printHits(out *output.Writer, index string, hits []store.Hit) {
	if len(hits) == 0 {
		out.Warningf("No results in %s", index)
		return
	}
	out.Successf("%d results in %s", len(hits), index)
	for i, h := range hits {
		out.Newline()
		if h.ID != "" {
			out.Statusf(fmt.Sprintf("%d.", i+1), "%s (score %.3f)", h.ID, h.Score)
		} else {
			out.Status(fmt.Sprintf("%d.", i+1), "")
		}
		out.KeyValues(docPairs(h.Document))
	}
}

// docPairs lists a document's fields in name order.
func docPairs(d document.Doc) [][2]string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([][2]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, [2]string{k, fmt.Sprint(d[k])})
	}
	return pairs
}
