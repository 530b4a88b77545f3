// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 封装 go-redis 客户端，为 Redis 历史存储提供 JSON 读写。

# 核心类型

  - Manager：持有 Redis 客户端，负责连接、健康检查与优雅关闭，
    提供 GetJSON/SetJSON/Delete/Expire/Ping。
  - Config：地址、密码、连接池大小与健康检查间隔。

# 错误语义

  - ErrCacheMiss：key 不存在。
  - ErrClosed：管理器已关闭。
*/
package cache
