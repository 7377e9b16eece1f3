package world

const (
	// SpawnSafeRadius keeps a disc of tiles around the map center free of
	// generated blockers so owners and their bots always start on
	// walkable ground.
	SpawnSafeRadius = 6.0

	// OwnerSpawnSpread bounds the random offset applied to a joining
	// owner's spawn position, in tiles.
	OwnerSpawnSpread = 2.0

	// HealthEpsilon is the tolerance below which two health values are
	// treated as equal. Structures within it of their maximum are
	// considered fully repaired.
	HealthEpsilon = 1e-6
)
