package ports

// TreeHasher computes content hashes of directory trees.
//
//go:generate mockgen -source=hasher.go -destination=mocks/mock_hasher.go -package=mocks
type TreeHasher interface {
	// HashTree hashes every file under path, skipping VCS metadata.
	// A missing path hashes to "" without error.
	HashTree(path string) (string, error)
}
