package leveldata

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/automoto/galaxia-mp/shared/gamemath"
	"github.com/lafriks/go-tiled"
)

// Layer and object group names read from TMX files.
const (
	WallTileLayer   = "walls"
	WallObjectGroup = "Walls"
	SpawnGroup      = "PlayerSpawn"
)

type spawnPoint struct {
	pose  gamemath.Pose
	index int
}

// LoadArena parses a TMX file into walls and spawn poses. It takes an fs.FS
// so callers can pass embed.FS or os.DirFS.
func LoadArena(fsys fs.FS, tmxPath string) (*Arena, error) {
	levelMap, err := tiled.LoadFile(tmxPath, tiled.WithFileSystem(fsys))
	if err != nil {
		return nil, fmt.Errorf("load TMX %s: %w", tmxPath, err)
	}

	arena := &Arena{
		Name:      strings.TrimSuffix(filepath.Base(tmxPath), ".tmx"),
		MapWidth:  levelMap.Width * levelMap.TileWidth,
		MapHeight: levelMap.Height * levelMap.TileHeight,
	}

	// Solid tiles from the walls layer, one wall per tile
	tileW := float64(levelMap.TileWidth)
	tileH := float64(levelMap.TileHeight)
	for _, layer := range levelMap.Layers {
		if layer.Name != WallTileLayer {
			continue
		}
		for y := 0; y < levelMap.Height; y++ {
			for x := 0; x < levelMap.Width; x++ {
				tile := layer.Tiles[y*levelMap.Width+x]
				if tile.IsNil() {
					continue
				}
				arena.addWall(gamemath.Rect{X: float64(x) * tileW, Y: float64(y) * tileH, W: tileW, H: tileH})
			}
		}
		break
	}

	var spawns []spawnPoint
	for _, og := range levelMap.ObjectGroups {
		switch og.Name {
		case WallObjectGroup:
			for _, o := range og.Objects {
				if o.Width <= 0 || o.Height <= 0 {
					continue
				}
				arena.addWall(gamemath.Rect{X: o.X, Y: o.Y, W: o.Width, H: o.Height})
			}
		case SpawnGroup:
			for _, o := range og.Objects {
				spawns = append(spawns, spawnPoint{
					pose: gamemath.Pose{
						Position: gamemath.V(o.X, o.Y),
						Facing:   gamemath.FacingFromDegrees(o.Rotation),
					},
					index: o.Properties.GetInt("spawnIndex"),
				})
			}
		}
	}

	// Explicit spawnIndex first, then left-to-right for consistent assignment
	sort.SliceStable(spawns, func(i, j int) bool {
		if spawns[i].index != spawns[j].index {
			return spawns[i].index < spawns[j].index
		}
		return spawns[i].pose.Position.X < spawns[j].pose.Position.X
	})
	for _, sp := range spawns {
		arena.Spawns = append(arena.Spawns, sp.pose)
	}

	return arena, nil
}

func (a *Arena) addWall(r gamemath.Rect) {
	a.Walls = append(a.Walls, Wall{ID: uint64(len(a.Walls) + 1), Rect: r})
}

// LoadAllArenas discovers all .tmx files in levelsDir within fsys and returns
// them keyed by stem name plus a sorted list of names.
func LoadAllArenas(fsys fs.FS, levelsDir string) (map[string]*Arena, []string, error) {
	pattern := levelsDir + "/*.tmx"
	matches, err := fs.Glob(fsys, pattern)
	if err != nil {
		return nil, nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, nil, fmt.Errorf("no .tmx files found in %s", levelsDir)
	}

	arenas := make(map[string]*Arena, len(matches))
	names := make([]string, 0, len(matches))

	for _, path := range matches {
		arena, err := LoadArena(fsys, path)
		if err != nil {
			return nil, nil, fmt.Errorf("load %s: %w", path, err)
		}
		arenas[arena.Name] = arena
		names = append(names, arena.Name)
	}

	sort.Strings(names)
	return arenas, names, nil
}
