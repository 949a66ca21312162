// provider/key.go
package provider

import "strings"

// FileKey 计算文件在存储桶中的路径: [directory/][path/]name_hash.ext
// 输入视为已由宿主清洗，这里只去掉开头的斜杠。
func FileKey(directory string, file *File) string {
	var path string
	if file.Path != "" {
		path = file.Path + "/"
	}
	filename := path + trimExt(file.Name) + "_" + file.Hash + file.Ext

	if directory != "" {
		filename = directory + "/" + filename
	}
	return strings.TrimLeft(filename, "/")
}

// trimExt 去掉最后一个点之后的后缀，后缀至少一个字符且不含 "." 或 "/"
func trimExt(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 || strings.ContainsRune(name[i+1:], '/') {
		return name
	}
	return name[:i]
}
