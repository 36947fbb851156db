package entity

import (
	"github.com/kittclouds/memoria/internal/store"
)

// Graph answers neighbor and path queries over one owner's entity
// relation edges, built fresh per query from the store.
type Graph struct {
	store store.Storer
}

// NewGraph builds a Graph over s.
func NewGraph(s store.Storer) *Graph {
	return &Graph{store: s}
}

// Neighbor is one entity reachable by a single relation edge from a
// query entity, along with the edge that reaches it.
type Neighbor struct {
	Entity   *store.Entity
	Relation *store.EntityRelation
}

// Neighbors returns every entity directly connected to entityID by a
// relation of strength at least minStrength, in either direction.
func (g *Graph) Neighbors(owner, entityID string, minStrength float64) ([]Neighbor, error) {
	rels, err := g.store.ListRelationsForEntity(owner, entityID, minStrength)
	if err != nil {
		return nil, err
	}
	var out []Neighbor
	for _, r := range rels {
		otherID := r.TargetID
		if otherID == entityID {
			otherID = r.SourceID
		}
		other, err := g.store.GetEntity(otherID)
		if err != nil {
			return nil, err
		}
		out = append(out, Neighbor{Entity: other, Relation: r})
	}
	return out, nil
}

// ShortestPath finds the minimum-hop chain of relations connecting
// fromID to toID via breadth-first search, ignoring edge direction and
// strength. It returns nil, nil if no path exists.
func (g *Graph) ShortestPath(owner, fromID, toID string) ([]*store.EntityRelation, error) {
	if fromID == toID {
		return []*store.EntityRelation{}, nil
	}

	type frame struct {
		entityID string
		path     []*store.EntityRelation
	}
	visited := map[string]bool{fromID: true}
	queue := []frame{{entityID: fromID}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		rels, err := g.store.ListRelationsForEntity(owner, cur.entityID, 0)
		if err != nil {
			return nil, err
		}
		for _, r := range rels {
			next := r.TargetID
			if next == cur.entityID {
				next = r.SourceID
			}
			if visited[next] {
				continue
			}
			path := append(append([]*store.EntityRelation{}, cur.path...), r)
			if next == toID {
				return path, nil
			}
			visited[next] = true
			queue = append(queue, frame{entityID: next, path: path})
		}
	}
	return nil, nil
}
