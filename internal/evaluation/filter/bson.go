package filter

import (
	"go-reports/internal/evaluation/model"

	"go.mongodb.org/mongo-driver/bson"
)

// SourceMatch selects the documents of one data source.
func SourceMatch(source model.DataSource) bson.M {
	m := bson.M{
		"definitionKey": source.Key,
		"tenantId":      bson.M{"$in": source.TenantIDs()},
	}
	if !source.IsAllVersions() {
		m["definitionVersion"] = bson.M{"$in": source.Versions}
	}
	return m
}

// Pushdown renders the instance-level filters of q as a Mongo match document over the given
// sources. Sources are OR-ed; each source only carries the filters applied to it.
func (q *Query) Pushdown(sources []model.DataSource) bson.M {
	branches := make(bson.A, 0, len(sources))
	for _, source := range sources {
		conditions := bson.A{SourceMatch(source)}
		if q != nil {
			for _, g := range q.instance {
				if cond := g.pushdown(source.ID()); cond != nil {
					conditions = append(conditions, cond)
				}
			}
		}
		if len(conditions) == 1 {
			branches = append(branches, conditions[0])
		} else {
			branches = append(branches, bson.M{"$and": conditions})
		}
	}
	switch len(branches) {
	case 0:
		return bson.M{"_id": bson.M{"$exists": false}}
	case 1:
		return branches[0].(bson.M)
	}
	return bson.M{"$or": branches}
}

// pushdown returns nil when the group does not constrain the source in the store.
func (g group) pushdown(sourceID string) any {
	alternatives := bson.A{}
	for _, c := range g.clauses {
		if !c.filter.AppliesTo(sourceID) {
			continue
		}
		cond := c.pushdown()
		if cond == nil {
			return nil
		}
		alternatives = append(alternatives, cond)
	}
	switch len(alternatives) {
	case 0:
		return nil
	case 1:
		return alternatives[0]
	}
	return bson.M{"$or": alternatives}
}
