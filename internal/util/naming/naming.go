package naming

import (
	"fmt"
	"strconv"
	"strings"
)

func Network(cluster string) string {
	return cluster
}

func Firewall(cluster string) string {
	return cluster
}

func SSHKey(cluster string) string {
	return fmt.Sprintf("%s-key", cluster)
}

func Server(cluster, pool string, index int) string {
	return fmt.Sprintf("%s-%s-%d", cluster, pool, index)
}

// ParseServer extracts the pool and index from a server name created by Server.
// Pool names may contain dashes; the index is always the last segment.
func ParseServer(cluster, name string) (pool string, index int, ok bool) {
	rest, found := strings.CutPrefix(name, cluster+"-")
	if !found {
		return "", 0, false
	}
	i := strings.LastIndex(rest, "-")
	if i <= 0 || i == len(rest)-1 {
		return "", 0, false
	}
	index, err := strconv.Atoi(rest[i+1:])
	if err != nil || index < 1 {
		return "", 0, false
	}
	return rest[:i], index, true
}
