package kv

import "fmt"

func EntryKey(namespace, name string) string {
	return fmt.Sprintf("kv:%s:%s", namespace, name)
}

func NamespacePattern(namespace string) string {
	return fmt.Sprintf("kv:%s:*", namespace)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
