package service

// size - число id, по которым сейчас держится или ожидается блокировка
func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
