package pipeline

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/OFFIS-RIT/keggflow/internal/kegg"
)

var stubRecords = map[string]string{
	"rn:R00001": "ENTRY       R00001                      Reaction\n" +
		"NAME        first reaction;\n" +
		"EQUATION    C00001 + 2 C00002 <=> C00003\n" +
		"ENZYME      1.1.1.1 1.1.1.2\n" +
		"RCLASS      RC00001  C00001_C00003\n" +
		"///\n",
	"rn:R00002": "ENTRY       R00002                      Reaction\n" +
		"EQUATION    C00003 => C00004\n" +
		"///\n",
	"rn:R00003": "ENTRY       R00003                      Reaction\n" +
		"EQUATION    C00001 <=> G00001\n" +
		"///\n",
	"cpd:C00001": "ENTRY       C00001                      Compound\nNAME        H2O;\nFORMULA     H2O\nEXACT_MASS  18.0106\nDBLINKS     ChEBI: 15377\n///\n",
	"cpd:C00002": "ENTRY       C00002                      Compound\nNAME        ATP\nMOL_WEIGHT  507.181\n///\n",
	"cpd:C00003": "ENTRY       C00003                      Compound\nNAME        NAD+\n///\n",
	"cpd:C00004": "ENTRY       C00004                      Compound\nNAME        NADH\n///\n",
}

var stubLinks = map[string]map[string][]string{
	"rn": {
		"ko:K00001": {"rn:R00001", "rn:R00002"},
		"ko:K00002": {"rn:R00002"},
	},
	"module": {
		"ko:K00001": {"md:M00001"},
	},
	"pathway": {
		"ko:K00001": {"path:map00010", "path:ko00010"},
		"ko:K00002": {"path:map00020"},
	},
}

type keggStub struct {
	*httptest.Server
	requests atomic.Int32
	gets     atomic.Int32
	failGet  atomic.Bool
	// onGet, when set before the first request, sees the 1-based /get count.
	onGet func(n int32)
}

func newKEGGStub(t *testing.T) *keggStub {
	t.Helper()
	stub := &keggStub{}
	stub.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.requests.Add(1)
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
		switch {
		case len(parts) == 2 && parts[0] == "get":
			n := stub.gets.Add(1)
			if stub.onGet != nil {
				stub.onGet(n)
			}
			if stub.failGet.Load() {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			for _, id := range strings.Split(parts[1], "+") {
				fmt.Fprint(w, stubRecords[id])
			}
		case len(parts) == 3 && parts[0] == "link":
			for _, id := range strings.Split(parts[2], "+") {
				for _, target := range stubLinks[parts[1]][id] {
					fmt.Fprintf(w, "%s\t%s\n", id, target)
				}
			}
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(stub.Close)
	return stub
}

func (s *keggStub) fetching() Fetching {
	return Fetching{
		Client: kegg.NewClient(kegg.NewClientParams{
			BaseURL:    s.URL,
			MaxRetries: 1,
			Timeout:    time.Second,
		}),
		BatchSize: 10,
	}
}
