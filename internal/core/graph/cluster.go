package graph

import (
	"context"
	"sort"

	"github.com/ishankgp/indegenge-persona-sub003/internal/core/model"
	"github.com/ishankgp/indegenge-persona-sub003/internal/store"
)

// Cluster is a group of knowledge nodes that hang together through their
// relations, regardless of edge direction or type.
type Cluster struct {
	Nodes []*model.KnowledgeNode `json:"nodes"`
}

const maxLabelIterations = 20

// Clusters groups a brand's nodes by label propagation over the undirected
// relation graph, weighting parallel edges as stronger ties. Isolated nodes
// form singleton clusters.
func (q *Query) Clusters(ctx context.Context, brandID string) ([]Cluster, error) {
	nodes, err := q.store.ListNodes(ctx, brandID, store.NodeFilter{})
	if err != nil {
		return nil, err
	}
	relations, err := q.store.ListRelations(ctx, brandID, store.RelationFilter{})
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}

	byID := make(map[string]*model.KnowledgeNode, len(nodes))
	adj := make(map[string]map[string]int, len(nodes))
	order := make([]string, 0, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
		adj[n.ID] = make(map[string]int)
		order = append(order, n.ID)
	}
	for _, r := range relations {
		if byID[r.FromNodeID] == nil || byID[r.ToNodeID] == nil {
			continue
		}
		adj[r.FromNodeID][r.ToNodeID]++
		adj[r.ToNodeID][r.FromNodeID]++
	}

	labels := make(map[string]string, len(nodes))
	for _, id := range order {
		labels[id] = id
	}

	for iter := 0; iter < maxLabelIterations; iter++ {
		changed := 0
		for _, id := range order {
			neighbors := adj[id]
			if len(neighbors) == 0 {
				continue
			}
			counts := make(map[string]int)
			bestLabel := labels[id]
			bestCount := 0
			for nb, weight := range neighbors {
				l := labels[nb]
				counts[l] += weight
				// Lexicographic tie-break keeps propagation deterministic.
				if counts[l] > bestCount || (counts[l] == bestCount && l < bestLabel) {
					bestLabel = l
					bestCount = counts[l]
				}
			}
			if bestLabel != labels[id] {
				labels[id] = bestLabel
				changed++
			}
		}
		if changed == 0 {
			break
		}
	}

	grouped := make(map[string][]*model.KnowledgeNode)
	var labelOrder []string
	for _, id := range order {
		l := labels[id]
		if _, ok := grouped[l]; !ok {
			labelOrder = append(labelOrder, l)
		}
		grouped[l] = append(grouped[l], byID[id])
	}

	clusters := make([]Cluster, 0, len(labelOrder))
	for _, l := range labelOrder {
		clusters = append(clusters, Cluster{Nodes: grouped[l]})
	}
	sort.SliceStable(clusters, func(i, j int) bool {
		return len(clusters[i].Nodes) > len(clusters[j].Nodes)
	})
	return clusters, nil
}
