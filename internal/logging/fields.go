package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// CacheFields 标记缓存读写动作与对应的 hash。
func CacheFields(action, key string) logrus.Fields {
	return logrus.Fields{
		"action": action,
		"hash":   key,
	}
}

// TokenFields 只记录 token id，原始 value 永远不进入日志。
func TokenFields(action, id string) logrus.Fields {
	return logrus.Fields{
		"action":   action,
		"token_id": id,
	}
}

// RequestFields 提供请求 ID/方法/路径/状态字段，供 HTTP 访问日志复用。
func RequestFields(requestID, method, path string, status int) logrus.Fields {
	return logrus.Fields{
		"request_id": requestID,
		"method":     method,
		"path":       path,
		"status":     status,
	}
}
