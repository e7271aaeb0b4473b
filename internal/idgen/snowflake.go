// Package idgen hands out time-ordered int64 ids for threads and messages.
package idgen

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Generator produces unique, increasing ids.
type Generator interface {
	Next() int64
}

// Snowflake generates ids with a snowflake node. Ids from one node are strictly increasing.
type Snowflake struct {
	node *snowflake.Node
}

// NewSnowflake creates a generator for the given node id (0-1023).
func NewSnowflake(nodeID int64) (*Snowflake, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &Snowflake{node: node}, nil
}

// MustSnowflake is NewSnowflake for tests and fixed node ids.
func MustSnowflake(nodeID int64) *Snowflake {
	g, err := NewSnowflake(nodeID)
	if err != nil {
		panic(err)
	}
	return g
}

func (s *Snowflake) Next() int64 {
	return s.node.Generate().Int64()
}
