package database

import (
	"sync"

	"shipdesk/pkg/config"
	"shipdesk/pkg/logger"
	"shipdesk/pkg/session"
)

var (
	sessionStoreInstance session.Store
	sessionStoreOnce     sync.Once
)

// GetSessionStore 获取会话存储的单例实例（默认Redis）
func GetSessionStore() session.Store {
	sessionStoreOnce.Do(func() {
		store, err := session.NewStore(config.GetConfig())
		if err != nil {
			logger.GetLogger().Errorf("Invalid session store config, falling back to memory: %v", err)
			store = session.NewMemoryStore()
		}
		sessionStoreInstance = store
	})
	return sessionStoreInstance
}

// CloseSessionStore 关闭会话存储连接
func CloseSessionStore() error {
	if sessionStoreInstance != nil {
		return sessionStoreInstance.Close()
	}
	return nil
}
