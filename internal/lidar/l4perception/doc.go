// Package l4perception owns Layer 4 (Perception) of the LiDAR data model.
//
// Responsibilities: voxel downsampling, region-of-interest cropping,
// RANSAC ground-plane segmentation, and Euclidean clustering of the
// remaining obstacle points over a 3-D k-d tree.
// Key types: WorldPoint, KDTree, Cluster, WorldCluster.
//
// The clustering core (KDTree, Grow, Extract) is pure in-memory
// computation: it never logs, performs I/O, or retains state between
// frames. A new KDTree is built for every frame.
//
// Dependency rule: L4 may depend on L1-L3, but never on L5+.
// No SQL/database code is allowed in this package.
package l4perception
