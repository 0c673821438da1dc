package octree

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Vector3 is a discrete 3D coordinate.
type Vector3 struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func NewVector3(x, y, z int) Vector3 {
	return Vector3{X: x, Y: y, Z: z}
}

func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vector3) String() string {
	return fmt.Sprintf("%d,%d,%d", v.X, v.Y, v.Z)
}

// ParseVector3 parses a coordinate formatted as "x,y,z".
func ParseVector3(s string) (Vector3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Vector3{}, errors.New("invalid coordinate").
			WithTag("value", s)
	}

	var c [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Vector3{}, errors.New("invalid coordinate component").
				WithTag("value", s).
				WithTag("index", i).
				Wrap(err)
		}
		c[i] = n
	}
	return Vector3{c[0], c[1], c[2]}, nil
}
