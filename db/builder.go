package db

import (
	"ldb"
	"ldb/table"
)

// buildTable writes the entries of iter into the table file meta.number and
// fills in the rest of meta. Nothing is written if iter is empty. On error
// the partial file is removed.
func buildTable(dbName string, env *ldb.Env, options *ldb.Options, tableCache *tableCache, iter ldb.Iterator, meta *fileMetaData) (err error) {
	meta.fileSize = 0
	iter.SeekToFirst()
	fname := tableFileName(dbName, meta.number)
	if iter.IsValid() {
		var file ldb.WritableFile
		if file, err = env.NewWritableFile(fname); err != nil {
			return
		}
		builder := table.NewBuilder(options, file)
		meta.smallest = append(meta.smallest[:0], iter.GetKey()...)
		for ; iter.IsValid() && err == nil; iter.Next() {
			key := iter.GetKey()
			meta.largest = append(meta.largest[:0], key...)
			err = builder.Add(key, iter.GetValue())
		}

		if err == nil {
			if err = builder.Finish(); err == nil {
				meta.fileSize = builder.FileSize()
				if meta.fileSize == 0 {
					panic("builder: meta.fileSize == 0")
				}
			}
		} else {
			builder.Abandon()
		}

		if err == nil {
			err = file.Sync()
		}
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
		if err == nil {
			// Verify that the table is usable.
			it := tableCache.newIterator(ldb.NewReadOptions(), meta.number, meta.fileSize)
			err = it.GetStatus()
			it.Close()
		}
	}

	if iterErr := iter.GetStatus(); iterErr != nil {
		err = iterErr
	}
	if err != nil || meta.fileSize == 0 {
		_ = env.DeleteFile(fname)
	}
	return
}
