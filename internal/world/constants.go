package world

import "time"

// Origin is the player spawn point every fixed position is measured from.
// The player faces north (negative Z) after spawning.
var Origin = Pos(0, 64, 0)

// GroundY is the height test entities are placed at.
const GroundY = 64.0

// Fixed test positions.
var (
	North             = Pos(0, 64, -10)
	South             = Pos(0, 64, 10)
	East              = Pos(10, 64, 0)
	West              = Pos(-10, 64, 0)
	NorthEast         = Pos(7, 64, -7)
	NorthWest         = Pos(-7, 64, -7)
	SouthEast         = Pos(7, 64, 7)
	SouthWest         = Pos(-7, 64, 7)
	OutsideRadius     = Pos(12, 64, 0)
	MaxLightningRange = Pos(0, 64, -50)
)

// Direction names a cardinal offset used by ring placement.
type Direction string

const (
	DirEast  Direction = "east"
	DirWest  Direction = "west"
	DirSouth Direction = "south"
	DirNorth Direction = "north"
)

// Cardinals lists the ring directions in spawn order.
var Cardinals = []Direction{DirEast, DirWest, DirSouth, DirNorth}

// Offset returns the unit vector for d on the ground plane.
func (d Direction) Offset(radius float64) Position {
	switch d {
	case DirEast:
		return Pos(radius, 0, 0)
	case DirWest:
		return Pos(-radius, 0, 0)
	case DirSouth:
		return Pos(0, 0, radius)
	case DirNorth:
		return Pos(0, 0, -radius)
	}
	return Position{}
}

// Entity base health, in half-hearts.
const (
	HealthZombie   = 20.0
	HealthSkeleton = 20.0
	HealthCreeper  = 20.0
	HealthSpider   = 16.0
	HealthVillager = 20.0
	HealthPlayer   = 20.0
)

// Ability damage and ratios.
const (
	DamageLightningStrike  = 12.0
	DamageDragonsWrath     = 8.0
	DamageSurgeCollision   = 6.0
	LifeDevourerStealRatio = 0.25
)

// Ability cooldowns.
var Cooldowns = map[string]time.Duration{
	"lightning":  60 * time.Second,
	"fire_1":     40 * time.Second,
	"fire_2":     60 * time.Second,
	"agile_1":    30 * time.Second,
	"agile_2":    45 * time.Second,
	"immortal_1": 120 * time.Second,
	"immortal_2": 480 * time.Second,
	"corrupt_1":  180 * time.Second,
	"corrupt_2":  120 * time.Second,
}

// Effect windows.
const (
	DraconicSurgeDash        = 1 * time.Second
	DraconicSurgeFallGuard   = 10 * time.Second
	WingBurstPush            = 2 * time.Second
	WingBurstSlowFalling     = 10 * time.Second
	DreadGazeFreeze          = 4 * time.Second
	LifeDevourerWindow       = 20 * time.Second
	DraconicReflexWindow     = 15 * time.Second
	EssenceRebirthWindow     = 30 * time.Second
	InfernalDominionWindow   = 10 * time.Second
	LightningStrikeInterval  = 500 * time.Millisecond
	LightningStrikeCount     = 3
	LightningStrikeTotalTime = LightningStrikeInterval * LightningStrikeCount
)

// Fragment identifies one of the equippable dragon fragments.
type Fragment string

const (
	FragmentBurning   Fragment = "fire"
	FragmentAgility   Fragment = "agile"
	FragmentImmortal  Fragment = "immortal"
	FragmentCorrupted Fragment = "corrupt"
)

// Item is the inventory item that carries the fragment.
func (f Fragment) Item() string {
	switch f {
	case FragmentBurning:
		return "blaze_powder"
	case FragmentAgility:
		return "phantom_membrane"
	case FragmentImmortal:
		return "diamond"
	case FragmentCorrupted:
		return "fermented_spider_eye"
	}
	return ""
}

// FrozenNBT keeps spawned test entities still, quiet and persistent.
const FrozenNBT = "NoAI:1,Silent:1,PersistenceRequired:1"

// Plugin chat replies the scenarios key on.
const (
	ReplyEquipped    = "Equipped "
	ReplyUsed        = "Used "
	ReplyOnCooldown  = "Ability on cooldown!"
	ReplyOneFragment = "You can only carry one fragment at a time!"
)

// CooldownStorage is the command storage namespace holding cooldowns.
const CooldownStorage = "elemental_dragon"
