package gql

import (
	_ "embed"
	"net/http"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"

	"socialgraph/db"
	"socialgraph/graph"
)

//go:embed schema.graphql
var schemaText string

// NewSchema parses the schema against a Resolver. maxDepth bounds how many
// relations one query may traverse.
func NewSchema(svc *graph.Service, store db.Store, maxDepth int) (*graphql.Schema, error) {
	root := &Resolver{svc: svc, store: store}
	// the root field and the scalar leaves add two levels to the relation depth
	return graphql.ParseSchema(schemaText, root, graphql.MaxDepth(maxDepth+2))
}

// Handler serves GraphQL over HTTP. Query fields of one request share a Loader
// so entities are fetched once per request; mutation results start their own.
func Handler(schema *graphql.Schema, store db.Store) http.Handler {
	h := &relay.Handler{Schema: schema}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := graph.WithLoader(r.Context(), graph.NewLoader(store))
		h.ServeHTTP(w, r.WithContext(ctx))
	})
}
