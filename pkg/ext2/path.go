package ext2

import "strings"

// ResolvePath walks path (absolute, slash-separated) from the root,
// resolving each component with Lookup. This is a convenience the VFS
// pathname resolver above this engine would normally own (§1's scope note);
// it's provided here for callers such as cmd/ext2util that talk to the
// engine directly with no VFS layer above them.
func (fs *FS) ResolvePath(path string) (uint32, error) {
	ino := uint32(RootInode)
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		in, err := fs.ReadInode(ino)
		if err != nil {
			return 0, err
		}
		ino, err = fs.Lookup(&in, part)
		if err != nil {
			return 0, err
		}
	}
	return ino, nil
}
