package cmd

import (
	"fmt"
)

func Init(dbURI string) error {
	fmt.Println("📦 开始初始化数据库")
	db, err := openDB(dbURI)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("🚀 表结构创建完成")
	return nil
}
