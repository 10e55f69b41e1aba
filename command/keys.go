package command

// KeyCommands returns the commands that work on keys of any kind.
func KeyCommands() []Spec {
	return []Spec{
		{Name: "DEL", Handler: del, Flags: FlagWrite, Arity: -2, FirstKey: 1, LastKey: -1, KeyStep: 1},
		{Name: "EXISTS", Handler: exists, Flags: FlagReadOnly, Arity: -2, FirstKey: 1, LastKey: -1, KeyStep: 1},
		{Name: "TYPE", Handler: typeOf, Flags: FlagReadOnly, Arity: 2, FirstKey: 1, LastKey: 1, KeyStep: 1},
		{Name: "KEYS", Handler: keys, Flags: FlagReadOnly | FlagAllKeys, Arity: 2},
		{Name: "DBSIZE", Handler: dbSize, Flags: FlagReadOnly | FlagAllKeys, Arity: 1},
		{Name: "FLUSHALL", Handler: flushAll, Flags: FlagWrite | FlagAllKeys, Arity: 1},
	}
}

// DEL key [key ...]
func del(c *Ctx) (Reply, error) {
	var n int64
	for _, key := range c.Args[1:] {
		if c.Store.Delete(key) {
			n++
		}
	}
	if n > 0 {
		c.Replicate()
	}
	return Int(n), nil
}

// EXISTS key [key ...]
func exists(c *Ctx) (Reply, error) {
	var n int64
	for _, key := range c.Args[1:] {
		if _, ok := c.Store.Get(key); ok {
			n++
		}
	}
	return Int(n), nil
}

// TYPE key
func typeOf(c *Ctx) (Reply, error) {
	return Status(c.Store.Kind(c.Args[1]).String()), nil
}

// KEYS pattern
//
// Patterns use path.Match syntax, so unlike Redis '*' and '?' do not match
// '/'.
func keys(c *Ctx) (Reply, error) {
	ks := c.Store.Keys(c.Args[1])
	out := make([]Reply, len(ks))
	for i, k := range ks {
		out[i] = Bulk(k)
	}
	return Array(out...), nil
}

// DBSIZE
func dbSize(c *Ctx) (Reply, error) {
	return Int(int64(c.Store.Len())), nil
}

// FLUSHALL
func flushAll(c *Ctx) (Reply, error) {
	c.Store.Flush()
	c.Replicate()
	return OK, nil
}
