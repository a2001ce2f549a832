// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package cluster derives the architecture view of a commit from its
// embedding vectors: density clusters, dead-code candidates among the
// outliers, churn hot spots, and LLM insights over the summary.
package cluster

import (
	"math"
)

// Density clustering parameters. Distance is cosine; vectors from the
// same embedding model are comparable without rescaling.
const (
	ClusterEpsilon   = 0.25
	ClusterMinPoints = 3
)

// OutlierID marks points no cluster claimed.
const OutlierID = -1

// Cluster assigns a cluster id to every vector with a DBSCAN-style
// density sweep over cosine distance. Unclaimed points get OutlierID.
// The sweep visits points in input order, so the assignment is
// deterministic for identical input.
func Cluster(vectors [][]float32) []int {
	n := len(vectors)
	assignments := make([]int, n)
	for i := range assignments {
		assignments[i] = OutlierID
	}
	if n == 0 {
		return assignments
	}

	norms := make([]float64, n)
	for i, v := range vectors {
		norms[i] = vectorNorm(v)
	}

	neighbors := func(i int) []int {
		var result []int
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			if cosineDistance(vectors[i], vectors[j], norms[i], norms[j]) <= ClusterEpsilon {
				result = append(result, j)
			}
		}
		return result
	}

	visited := make([]bool, n)
	nextCluster := 0
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true
		seed := neighbors(i)
		if len(seed) < ClusterMinPoints-1 {
			continue
		}

		cluster := nextCluster
		nextCluster++
		assignments[i] = cluster

		// Expand the cluster breadth-first over density-reachable points.
		queue := seed
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			if assignments[j] == OutlierID {
				assignments[j] = cluster
			}
			if visited[j] {
				continue
			}
			visited[j] = true
			reach := neighbors(j)
			if len(reach) >= ClusterMinPoints-1 {
				queue = append(queue, reach...)
			}
		}
	}
	return assignments
}

func vectorNorm(v []float32) float64 {
	sum := 0.0
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosineDistance(a, b []float32, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 1
	}
	dot := 0.0
	for i := range a {
		if i >= len(b) {
			break
		}
		dot += float64(a[i]) * float64(b[i])
	}
	return 1 - dot/(normA*normB)
}
