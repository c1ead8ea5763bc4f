package ext2

// Node is the thin per-inode adapter the VFS layer mounts against (§6.2).
// Every call resolves (fs, Ino) to an inode, invokes the core engine, and
// writes the inode back on any call that mutates it; Node itself holds no
// cached copy and no lock, matching the value-type inode convention in §3.
type Node struct {
	fs  *FS
	Ino uint32
}

// NodeForRoot returns the Node for the filesystem root.
func NodeForRoot(fs *FS) Node {
	return Node{fs: fs, Ino: RootInode}
}

// NodeFor wraps an already-resolved inode number.
func NodeFor(fs *FS, ino uint32) Node {
	return Node{fs: fs, Ino: ino}
}

// Open reads the current on-disk inode for this node.
func (n Node) Open() (Inode, error) {
	return n.fs.ReadInode(n.Ino)
}

// Read implements the VFS-facing byte-range read.
func (n Node) Read(offset uint64, size int) ([]byte, error) {
	in, err := n.fs.ReadInode(n.Ino)
	if err != nil {
		return nil, err
	}
	dst := make([]byte, size)
	got, err := n.fs.ReadFile(&in, offset, dst)
	if err != nil {
		return nil, err
	}
	return dst[:got], nil
}

// Write implements the VFS-facing byte-range write, persisting the mutated
// inode afterward.
func (n Node) Write(offset uint64, data []byte, now uint32) (int, error) {
	in, err := n.fs.ReadInode(n.Ino)
	if err != nil {
		return 0, err
	}
	written, err := n.fs.WriteFile(&in, offset, data, now)
	if err != nil {
		return written, err
	}
	if err := n.fs.WriteInode(n.Ino, &in); err != nil {
		return written, err
	}
	return written, nil
}

// Lookup resolves a child name to a Node.
func (n Node) Lookup(name string) (Node, error) {
	parent, err := n.fs.ReadInode(n.Ino)
	if err != nil {
		return Node{}, err
	}
	ino, err := n.fs.Lookup(&parent, name)
	if err != nil {
		return Node{}, err
	}
	return NodeFor(n.fs, ino), nil
}

// DirEnt is what the VFS readdir surface reports for one entry.
type DirEnt struct {
	Name  string
	Inode uint32
	Type  uint8
}

// Readdir returns the index-th directory entry.
func (n Node) Readdir(index int) (DirEnt, error) {
	in, err := n.fs.ReadInode(n.Ino)
	if err != nil {
		return DirEnt{}, err
	}
	entry, err := n.fs.Readdir(&in, index)
	if err != nil {
		return DirEnt{}, err
	}
	return DirEnt{Name: entry.Name, Inode: entry.Inode, Type: entry.FileType}, nil
}

// Create makes a regular file named name in this directory node.
func (n Node) Create(name string, perm uint16, now uint32) (Node, error) {
	parent, err := n.fs.ReadInode(n.Ino)
	if err != nil {
		return Node{}, err
	}
	ino, err := n.fs.Create(&parent, name, perm, now)
	if err != nil {
		return Node{}, err
	}
	if err := n.fs.WriteInode(n.Ino, &parent); err != nil {
		return Node{}, err
	}
	return NodeFor(n.fs, ino), nil
}

// Mkdir makes a directory named name in this directory node.
func (n Node) Mkdir(name string, perm uint16, now uint32) (Node, error) {
	parent, err := n.fs.ReadInode(n.Ino)
	if err != nil {
		return Node{}, err
	}
	ino, err := n.fs.Mkdir(n.Ino, &parent, name, perm, now)
	if err != nil {
		return Node{}, err
	}
	if err := n.fs.WriteInode(n.Ino, &parent); err != nil {
		return Node{}, err
	}
	return NodeFor(n.fs, ino), nil
}

// Unlink removes name from this directory node.
func (n Node) Unlink(name string) error {
	parent, err := n.fs.ReadInode(n.Ino)
	if err != nil {
		return err
	}
	return n.fs.Unlink(&parent, name)
}

// Sync flushes the whole filesystem this node belongs to.
func (n Node) Sync() int {
	return n.fs.Sync()
}
