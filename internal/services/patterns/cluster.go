package patterns

import (
	"math"
	"sort"
)

// clusterItem is one embedded item handed to a clusterer
type clusterItem struct {
	ItemID string
	Title  string
	Tokens []string
	Vector []float64
}

// cluster is one group of items produced by a clusterer
type cluster struct {
	Members []clusterItem
}

// Clusterer groups embedded items into at most maxClusters groups
type Clusterer interface {
	Cluster(items []clusterItem, maxClusters int) []cluster
}

// FirstTokenClusterer is the deterministic fallback: items are bucketed by
// their first token. Buckets are emitted largest first, ties broken by token
// order, capped at maxClusters.
type FirstTokenClusterer struct{}

func (FirstTokenClusterer) Cluster(items []clusterItem, maxClusters int) []cluster {
	buckets := make(map[string][]clusterItem)
	for _, item := range items {
		if len(item.Tokens) == 0 {
			continue
		}
		key := item.Tokens[0]
		buckets[key] = append(buckets[key], item)
	}

	keys := make([]string, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(buckets[keys[i]]) != len(buckets[keys[j]]) {
			return len(buckets[keys[i]]) > len(buckets[keys[j]])
		}
		return keys[i] < keys[j]
	})

	if maxClusters > 0 && len(keys) > maxClusters {
		keys = keys[:maxClusters]
	}

	clusters := make([]cluster, 0, len(keys))
	for _, key := range keys {
		clusters = append(clusters, cluster{Members: buckets[key]})
	}
	return clusters
}

// KMeansClusterer is a deterministic k-means over the embedding vectors:
// centroids seed from evenly spaced items in input order, so identical input
// yields identical groupings.
type KMeansClusterer struct {
	MaxIterations int
}

func (k KMeansClusterer) Cluster(items []clusterItem, maxClusters int) []cluster {
	if len(items) == 0 {
		return nil
	}
	clusterCount := maxClusters
	if clusterCount <= 0 || clusterCount > len(items) {
		clusterCount = len(items)
	}

	iterations := k.MaxIterations
	if iterations <= 0 {
		iterations = 25
	}

	// Seed centroids from evenly spaced items
	centroids := make([][]float64, clusterCount)
	for i := 0; i < clusterCount; i++ {
		src := items[i*len(items)/clusterCount].Vector
		centroids[i] = append([]float64{}, src...)
	}

	assignment := make([]int, len(items))
	for iter := 0; iter < iterations; iter++ {
		changed := false
		for i, item := range items {
			best := nearestCentroid(item.Vector, centroids)
			if assignment[i] != best {
				assignment[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}
		recomputeCentroids(items, assignment, centroids)
	}

	groups := make([][]clusterItem, clusterCount)
	for i, item := range items {
		groups[assignment[i]] = append(groups[assignment[i]], item)
	}

	clusters := make([]cluster, 0, clusterCount)
	for _, members := range groups {
		if len(members) > 0 {
			clusters = append(clusters, cluster{Members: members})
		}
	}
	sort.SliceStable(clusters, func(i, j int) bool {
		return len(clusters[i].Members) > len(clusters[j].Members)
	})
	return clusters
}

func nearestCentroid(vector []float64, centroids [][]float64) int {
	best := 0
	bestDist := math.MaxFloat64
	for i, centroid := range centroids {
		dist := 0.0
		for d := range vector {
			diff := vector[d] - centroid[d]
			dist += diff * diff
		}
		if dist < bestDist {
			bestDist = dist
			best = i
		}
	}
	return best
}

func recomputeCentroids(items []clusterItem, assignment []int, centroids [][]float64) {
	counts := make([]int, len(centroids))
	sums := make([][]float64, len(centroids))
	for i := range sums {
		sums[i] = make([]float64, len(centroids[i]))
	}

	for i, item := range items {
		c := assignment[i]
		counts[c]++
		for d, v := range item.Vector {
			sums[c][d] += v
		}
	}

	for i := range centroids {
		if counts[i] == 0 {
			continue
		}
		for d := range centroids[i] {
			centroids[i][d] = sums[i][d] / float64(counts[i])
		}
	}
}
