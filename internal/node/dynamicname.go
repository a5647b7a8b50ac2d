package node

import "strconv"

func dynamicName(prefix string, n int) string {
	return prefix + "_" + strconv.Itoa(n)
}
