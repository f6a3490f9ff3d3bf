package tours

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

const (
	DefaultPage  = 1
	DefaultLimit = 100
	DefaultSort  = "-createdAt"
)

type Operator string

const (
	OpEq  Operator = "="
	OpGte Operator = ">="
	OpGt  Operator = ">"
	OpLte Operator = "<="
	OpLt  Operator = "<"
)

var operators = map[string]Operator{
	"gte": OpGte,
	"gt":  OpGt,
	"lte": OpLte,
	"lt":  OpLt,
}

type field struct {
	column  string
	numeric bool
}

// queryable maps the JSON names clients use to columns. Anything not
// listed can not be filtered or sorted on.
var queryable = map[string]field{
	"name":            {column: "name"},
	"slug":            {column: "slug"},
	"difficulty":      {column: "difficulty"},
	"duration":        {column: "duration", numeric: true},
	"maxGroupSize":    {column: "max_group_size", numeric: true},
	"ratingsAverage":  {column: "ratings_average", numeric: true},
	"ratingsQuantity": {column: "ratings_quantity", numeric: true},
	"price":           {column: "price", numeric: true},
	"priceDiscount":   {column: "price_discount", numeric: true},
	"createdAt":       {column: "created_at"},
}

// reserved query keys are never treated as filters
var reserved = map[string]bool{
	"page":   true,
	"sort":   true,
	"limit":  true,
	"fields": true,
}

type Filter struct {
	Column string
	Op     Operator
	Value  any
}

type SortField struct {
	Column string
	Desc   bool
}

// Features is a parsed list request: filters, ordering, projection and
// pagination.
type Features struct {
	Filters []Filter
	Sort    []SortField
	Fields  []string
	Exclude bool
	Page    int
	Limit   int
}

// TopCheapFeatures is the top-5-cheap alias
func TopCheapFeatures() Features {
	f, _ := ParseFeatures(map[string]string{
		"limit":  "5",
		"sort":   "-ratingsAverage,price",
		"fields": "name,price,ratingsAverage,summary,difficulty",
	})
	return f
}

// ParseFeatures reads query parameters such as price[gte]=500,
// sort=-price,name fields=name,price page=2 and limit=10.
func ParseFeatures(query map[string]string) (Features, error) {
	f := Features{Page: DefaultPage, Limit: DefaultLimit}

	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if reserved[key] {
			continue
		}

		name, op := key, OpEq
		if i := strings.IndexByte(key, '['); i > 0 && strings.HasSuffix(key, "]") {
			name = key[:i]
			o, ok := operators[key[i+1:len(key)-1]]
			if !ok {
				return f, invalidQuery("unsupported filter operator", key)
			}
			op = o
		}

		fd, ok := queryable[name]
		if !ok {
			continue
		}

		var value any = query[key]
		if fd.numeric {
			n, err := strconv.ParseFloat(query[key], 64)
			if err != nil {
				return f, invalidQuery("filter value must be a number", key)
			}
			value = n
		}

		f.Filters = append(f.Filters, Filter{Column: fd.column, Op: op, Value: value})
	}

	sortExpr := query["sort"]
	if sortExpr == "" {
		sortExpr = DefaultSort
	}
	for _, part := range splitList(sortExpr) {
		desc := strings.HasPrefix(part, "-")
		fd, ok := queryable[strings.TrimPrefix(part, "-")]
		if !ok {
			return f, invalidQuery("unknown sort field", part)
		}
		f.Sort = append(f.Sort, SortField{Column: fd.column, Desc: desc})
	}

	if fields := splitList(query["fields"]); len(fields) > 0 {
		f.Exclude = strings.HasPrefix(fields[0], "-")
		for _, name := range fields {
			f.Fields = append(f.Fields, strings.TrimPrefix(name, "-"))
		}
	}

	if v := query["page"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return f, invalidQuery("page must be a positive number", v)
		}
		f.Page = n
	}

	if v := query["limit"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return f, invalidQuery("limit must be a positive number", v)
		}
		f.Limit = n
	}

	return f, nil
}

// Apply adds filters, ordering and pagination to q
func (f Features) Apply(q *bun.SelectQuery) *bun.SelectQuery {
	for _, flt := range f.Filters {
		q = q.Where("?TableAlias.? "+string(flt.Op)+" ?", bun.Ident(flt.Column), flt.Value)
	}

	for _, s := range f.Sort {
		if s.Desc {
			q = q.OrderExpr("?TableAlias.? DESC", bun.Ident(s.Column))
		} else {
			q = q.OrderExpr("?TableAlias.? ASC", bun.Ident(s.Column))
		}
	}

	page, limit := f.Page, f.Limit
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}

	return q.Offset((page - 1) * limit).Limit(limit)
}

// Project reduces each tour to the requested fields. The id is always
// kept. Without fields the tours are returned as they are.
func (f Features) Project(items []*Tour) (any, error) {
	if len(f.Fields) == 0 {
		return items, nil
	}

	out := make([]map[string]any, 0, len(items))
	for _, t := range items {
		raw, err := json.Marshal(t)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to encode tour")
		}

		doc := map[string]any{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to decode tour")
		}

		out = append(out, f.project(doc))
	}
	return out, nil
}

func (f Features) project(doc map[string]any) map[string]any {
	if f.Exclude {
		for _, name := range f.Fields {
			if name != "id" {
				delete(doc, name)
			}
		}
		return doc
	}

	keep := map[string]any{"id": doc["id"]}
	for _, name := range f.Fields {
		if v, ok := doc[name]; ok {
			keep[name] = v
		}
	}
	return keep
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func invalidQuery(msg, value string) error {
	return errors.New(msg, errors.CategoryBadInput).
		WithCode(errors.CodeBadRequest).
		WithTextCode(TextCodeInvalidQuery).
		WithMetadata(map[string]any{"value": value})
}
