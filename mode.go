package quickfs

// File mode bits. QuickFS only ever sets the regular-file and directory
// type bits plus owner/group read-write permissions, but the constants are
// named the standard way since `mode` is stored and compared bit-for-bit
// with what a POSIX-minded caller would pass in.
const (
	ModeOtherExec = 1 << iota
	ModeOtherWrite
	ModeOtherRead
	ModeGroupExec
	ModeGroupWrite
	ModeGroupRead
	ModeOwnerExec
	ModeOwnerWrite
	ModeOwnerRead
	ModeSticky
	ModeSetGID
	ModeSetUID
	ModeTypeFIFO
	ModeTypeChar
	ModeTypeDir
	ModeTypeRegular
)

// RootDirMode is the mode written to the root inode at format time: a
// directory, owner and group read-write
// (S_IFDIR | S_IRUSR | S_IWUSR | S_IRGRP | S_IWGRP).
const RootDirMode = ModeTypeDir | ModeOwnerRead | ModeOwnerWrite | ModeGroupRead | ModeGroupWrite

// IsDir reports whether mode has the directory type bit set.
func IsDir(mode uint16) bool {
	return mode&ModeTypeDir != 0
}
